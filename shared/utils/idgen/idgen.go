// Package idgen produces the business numbers carried by categories and users.
package idgen

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/pkg/errors"
)

const (
	UnoSeedWidth   = 4
	UsernoSeqWidth = 6
	MaxUsernoSeq   = 999999
	DefaultUnoSeed = "888"
)

var (
	node     *snowflake.Node
	nodeOnce sync.Once
	nodeErr  error
)

// SetNode replaces the snowflake node id. Valid ids are 0..1023.
func SetNode(id int64) error {
	n, err := snowflake.NewNode(id)
	if err != nil {
		return err
	}
	nodeOnce.Do(func() {})
	node = n
	return nil
}

func getNode() (*snowflake.Node, error) {
	nodeOnce.Do(func() {
		node, nodeErr = snowflake.NewNode(1)
	})
	return node, nodeErr
}

// Cateno returns a new category number: a snowflake id in base36.
func Cateno() (string, error) {
	n, err := getNode()
	if err != nil {
		return "", err
	}
	return n.Generate().Base36(), nil
}

// PadUnoSeed validates a 1..4 digit seed and left pads it with zeros.
func PadUnoSeed(seed string) (string, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" || len(seed) > UnoSeedWidth {
		return "", errors.Errorf("uno seed %q must have 1 to %d digits", seed, UnoSeedWidth)
	}
	if _, err := strconv.ParseUint(seed, 10, 32); err != nil {
		return "", errors.Errorf("uno seed %q is not numeric", seed)
	}
	return strings.Repeat("0", UnoSeedWidth-len(seed)) + seed, nil
}

// NormalizeUnoSeeds pads every valid seed and drops the rest.
// The default seed is used when nothing valid remains.
func NormalizeUnoSeeds(seeds []string) []string {
	out := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if p, err := PadUnoSeed(s); err == nil {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		p, _ := PadUnoSeed(DefaultUnoSeed)
		out = append(out, p)
	}
	return out
}

// Userno joins a padded seed with a zero padded sequence.
func Userno(seed string, seq int64) string {
	return fmt.Sprintf("%s%0*d", seed, UsernoSeqWidth, seq)
}

// NextSeq returns the sequence following the last userno issued under seed.
func NextSeq(seed, last string) int64 {
	if !strings.HasPrefix(last, seed) {
		return 1
	}
	n, err := strconv.ParseInt(last[len(seed):], 10, 64)
	if err != nil {
		return 1
	}
	return n + 1
}
