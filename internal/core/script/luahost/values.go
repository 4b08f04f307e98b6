package luahost

import (
	"fmt"
	"math"

	"github.com/Shopify/go-lua"

	"github.com/simforge/simforge/internal/core/world"
)

// pushValue converts a Go value onto the Lua stack. Slices become array
// tables, maps become record tables, entity ids become integers. Unknown
// types degrade to their string form rather than failing the call.
func pushValue(state *lua.State, v any) {
	switch x := v.(type) {
	case nil:
		state.PushNil()
	case bool:
		state.PushBoolean(x)
	case int:
		state.PushInteger(x)
	case int64:
		state.PushInteger(int(x))
	case uint64:
		state.PushInteger(int(x))
	case world.EntityID:
		state.PushInteger(int(x))
	case float64:
		state.PushNumber(x)
	case float32:
		state.PushNumber(float64(x))
	case string:
		state.PushString(x)
	case []any:
		state.CreateTable(len(x), 0)
		for i, elem := range x {
			pushValue(state, elem)
			state.RawSetInt(-2, i+1)
		}
	case map[string]any:
		state.CreateTable(0, len(x))
		for key, elem := range x {
			pushValue(state, elem)
			state.SetField(-2, key)
		}
	default:
		state.PushString(fmt.Sprintf("%v", x))
	}
}

// toValue converts the Lua value at index into a Go value.
func toValue(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	case lua.TypeUserData:
		return state.ToUserData(index)
	default:
		return nil
	}
}

// tableToGo reads a table as a []any when its keys form the dense range
// 1..n, and as a map[string]any otherwise.
func tableToGo(state *lua.State, index int) any {
	if state.TypeOf(index) != lua.TypeTable {
		return nil
	}

	index = state.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if state.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := state.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, toValue(state, -1))
			state.Pop(1)
		}
		return result
	}

	return tableToMap(state, index)
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = toValue(state, -1)
		}
		state.Pop(1)
	}
	return output
}

// normalizeNumber collapses whole floats to int so Lua's single number type
// round-trips cleanly through integer-typed Go fields.
func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int(value)
	}
	return value
}

// collectArgs reads every argument of the current Go-function call.
func collectArgs(state *lua.State) []any {
	top := state.Top()
	if top == 0 {
		return nil
	}
	args := make([]any, 0, top)
	for i := 1; i <= top; i++ {
		args = append(args, toValue(state, i))
	}
	return args
}
