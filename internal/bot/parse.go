// internal/bot/parse.go
package bot

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// extractObject trims code fences and prose around the first JSON object.
func extractObject(reply string) (string, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no json object", ErrMalformedReply)
	}
	obj := reply[start : end+1]
	if !gjson.Valid(obj) {
		return "", fmt.Errorf("%w: invalid json", ErrMalformedReply)
	}
	return obj, nil
}

func parseDistractors(reply string, req DistractorRequest) ([]string, error) {
	obj, err := extractObject(reply)
	if err != nil {
		return nil, err
	}
	field := gjson.Get(obj, "distractors")
	if !field.IsArray() {
		return nil, fmt.Errorf("%w: distractors is not an array", ErrMalformedReply)
	}

	canonical := make(map[string]string, len(req.Pool))
	for _, name := range req.Pool {
		canonical[strings.ToLower(strings.TrimSpace(name))] = name
	}

	seen := make(map[string]bool)
	var out []string
	for _, item := range field.Array() {
		if item.Type != gjson.String {
			return nil, fmt.Errorf("%w: non-string distractor", ErrMalformedReply)
		}
		name, ok := canonical[strings.ToLower(strings.TrimSpace(item.String()))]
		if !ok {
			return nil, fmt.Errorf("%w: %q is not in the pool", ErrMalformedReply, item.String())
		}
		if strings.EqualFold(name, req.TrueLocation) || seen[name] {
			return nil, fmt.Errorf("%w: %q repeated or secret", ErrMalformedReply, name)
		}
		seen[name] = true
		out = append(out, name)
	}
	if len(out) != req.Count {
		return nil, fmt.Errorf("%w: got %d distractors, want %d", ErrMalformedReply, len(out), req.Count)
	}
	return out, nil
}

// parseVote maps the reply to a candidate id; an id or a player name is
// accepted. Null, self-votes, and unknown players become an abstain.
func parseVote(reply string, p VotePrompt) (string, error) {
	obj, err := extractObject(reply)
	if err != nil {
		return "", err
	}
	field := gjson.Get(obj, "vote")
	if !field.Exists() {
		return "", fmt.Errorf("%w: missing vote", ErrMalformedReply)
	}
	if field.Type == gjson.Null {
		return "", nil
	}
	choice := strings.TrimSpace(field.String())
	for _, c := range p.Candidates {
		if c.ID == p.VoterID {
			continue
		}
		if c.ID == choice || strings.EqualFold(c.Name, choice) {
			return c.ID, nil
		}
	}
	return "", nil
}
