package payout

import (
	"fmt"
	"strings"

	"github.com/geode-social/social-contract/config"
)

// InterestPolicy decides whether an account with the given interests may
// endorse a paid message targeting the tag.
type InterestPolicy func(interests, tag string) bool

// SubstringMatch accepts any interests string containing the tag, so
// "basketball" matches "ball". It is the historical behaviour of the
// contract and stays the default one.
func SubstringMatch(interests, tag string) bool {
	return strings.Contains(interests, tag)
}

// TagSetMatch treats interests as a comma separated list of tags and
// accepts exact matches only.
func TagSetMatch(interests, tag string) bool {
	for _, t := range strings.Split(interests, ",") {
		if strings.TrimSpace(t) == tag {
			return true
		}
	}
	return false
}

// PolicyByName returns interest policy by its configuration name.
func PolicyByName(name string) (InterestPolicy, error) {
	switch name {
	case config.SubstringPolicy:
		return SubstringMatch, nil
	case config.TagSetPolicy:
		return TagSetMatch, nil
	default:
		return nil, fmt.Errorf("unknown interest policy '%s'", name)
	}
}
