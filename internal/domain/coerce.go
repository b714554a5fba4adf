package domain

import "encoding/json"

// Record shapes coming back from the collaborator store are duck-typed JSON.
// The helpers below validate and coerce them into the typed records above at
// the boundary, so the rest of the code never inspects raw field maps.

// PlayerFromFields coerces a players-collection record.
func PlayerFromFields(id string, fields map[string]any) Player {
	return Player{
		ID:        id,
		Username:  asString(fields["username"]),
		Email:     asString(fields["email"]),
		Role:      asString(fields["role"]),
		Attempted: asBool(fields["attempted"]),
		Moved:     asBool(fields["moved"]),
		Score:     asInt(fields["score"]),
	}
}

// QuestionFromFields coerces a questions-collection record.
func QuestionFromFields(id string, fields map[string]any) Question {
	return Question{
		ID:           id,
		Prompt:       asString(fields["question"]),
		Options:      DecodeOptions(fields["options"]),
		CorrectIndex: asInt(fields["index"]),
	}
}

// LightFromFields coerces the singleton state record.
func LightFromFields(id string, fields map[string]any) LightState {
	return LightState{ID: id, Light: asBool(fields["light"])}
}

// DecodeOptions accepts the options field as either a native list or a
// JSON-encoded text blob. Anything unparseable degrades to an empty list;
// malformed content is never surfaced to the player.
func DecodeOptions(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, asString(item))
		}
		return out
	case string:
		var out []string
		if err := json.Unmarshal([]byte(val), &out); err != nil {
			return []string{}
		}
		return out
	default:
		return []string{}
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

// asInt tolerates the numeric types JSON decoding produces.
func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	default:
		return 0
	}
}
