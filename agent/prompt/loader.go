package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chinook-concierge/agent/contract"
	statex "github.com/tanpawarit/chinook-concierge/agent/state"
)

var (
	//go:embed template/router.txt
	routerRaw string

	//go:embed template/customer.txt
	customerRaw string

	//go:embed template/music.txt
	musicRaw string
)

// OtherReply is the fixed answer for requests no specialist can serve.
const OtherReply = "I'm sorry, I'm not able to help with that. Please ask me something else."

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Router   string
	Customer string
	Music    string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Router:   strings.TrimSpace(routerRaw),
		Customer: strings.TrimSpace(customerRaw),
		Music:    strings.TrimSpace(musicRaw),
	}
}

// ForTarget returns the system prompt of a tool-using specialist.
func (p PromptSet) ForTarget(target statex.Target) (string, error) {
	var out string
	switch target {
	case statex.TargetCustomer:
		out = p.Customer
	case statex.TargetMusic:
		out = p.Music
	default:
		return "", fmt.Errorf("%w: no prompt for %s", contractx.ErrPromptMissing, target)
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%w: %s prompt is empty", contractx.ErrPromptMissing, target)
	}
	return out, nil
}
