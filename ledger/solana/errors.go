package solana

import (
	"encoding/json"
	"math"

	"github.com/mintkit/sdk-go/types"
)

// DecodeError wraps a transaction error as returned by the RPC node. The raw
// payload is kept verbatim; an InstructionError carrying a Custom code, e.g.
// {"InstructionError":[0,{"Custom":311}]}, also fills CustomCode and
// InstructionIndex.
func DecodeError(v any) *types.ErrorDetail {
	if v == nil {
		return nil
	}
	d := &types.ErrorDetail{Raw: v}

	m, ok := v.(map[string]any)
	if !ok {
		if s, ok := v.(string); ok {
			d.Message = s
		}
		return d
	}
	ie, ok := m["InstructionError"].([]any)
	if !ok || len(ie) != 2 {
		return d
	}
	if idx, ok := toUint(ie[0]); ok && idx <= math.MaxInt32 {
		i := int(idx)
		d.InstructionIndex = &i
	}
	switch inner := ie[1].(type) {
	case map[string]any:
		if c, ok := toUint(inner["Custom"]); ok && c <= math.MaxUint32 {
			code := uint32(c)
			d.CustomCode = &code
		}
	case string:
		d.Message = inner
	}
	return d
}

func toUint(v any) (uint64, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 || n != math.Trunc(n) {
			return 0, false
		}
		return uint64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil || i < 0 {
			return 0, false
		}
		return uint64(i), true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case uint64:
		return n, true
	case uint32:
		return uint64(n), true
	default:
		return 0, false
	}
}
