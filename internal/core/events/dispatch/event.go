// Package dispatch defines the prioritized, recipient-addressed event queue
// that drives script hook execution. The queue itself is delivery-agnostic
// plumbing; the script host drains it once per tick and runs the matching
// hooks.
package dispatch

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/simforge/simforge/internal/core/world"
)

// Event names a script hook and carries its payload to selected contexts.
// Events live for one dispatch pass and are then discarded.
type Event struct {
	Hook string
	Args any
	To   Recipients
}

type recipientKind uint8

const (
	recipientAll recipientKind = iota
	recipientEntity
	recipientContext
)

// Recipients is the addressing mode of an event: broadcast, one entity's
// context, or one specific context.
type Recipients struct {
	kind    recipientKind
	entity  world.EntityID
	context uuid.UUID
}

// EveryContext addresses all attached contexts exposing the hook.
func EveryContext() Recipients {
	return Recipients{kind: recipientAll}
}

// ToEntity addresses the context owned by one entity.
func ToEntity(id world.EntityID) Recipients {
	return Recipients{kind: recipientEntity, entity: id}
}

// ToContext addresses one context by identity.
func ToContext(id uuid.UUID) Recipients {
	return Recipients{kind: recipientContext, context: id}
}

func (r Recipients) IsBroadcast() bool {
	return r.kind == recipientAll
}

// Entity returns the addressed entity, ok when the mode is ToEntity.
func (r Recipients) Entity() (world.EntityID, bool) {
	return r.entity, r.kind == recipientEntity
}

// Context returns the addressed context, ok when the mode is ToContext.
func (r Recipients) Context() (uuid.UUID, bool) {
	return r.context, r.kind == recipientContext
}

func (r Recipients) String() string {
	switch r.kind {
	case recipientEntity:
		return fmt.Sprintf("entity(%d)", r.entity)
	case recipientContext:
		return fmt.Sprintf("context(%s)", r.context)
	default:
		return "all"
	}
}
