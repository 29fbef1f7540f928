package cmd

import (
	"math/rand"
	"regexp"

	"github.com/dotcommander/cosmos-agent/internal/present"
)

var examples = map[string]string{
	"Ask the third question and clean up":  `cosmos-agent -n 2 --delete-agent`,
	"Check the MCP server before asking":   `cosmos-agent --preflight --model "gpt-4o"`,
	"Give slow runs more time":             `cosmos-agent --poll-timeout 10m --poll-max-interval 5s`,
	"Keep only the final answer in a file": `cosmos-agent -q --raw | tail -n 3 > answer.txt`,
}

var (
	quoteRe = regexp.MustCompile(`"([^"\\]|\\.)*"`)
	pipeRe  = regexp.MustCompile(`\|`)
)

func randomExample() string {
	keys := make([]string, 0, len(examples))
	for k := range examples {
		keys = append(keys, k)
	}
	return keys[rand.Intn(len(keys))] //nolint:gosec
}

func cheapHighlighting(s present.Styles, code string) string {
	code = quoteRe.ReplaceAllStringFunc(code, func(x string) string {
		return s.Quote.Render(x)
	})
	return pipeRe.ReplaceAllStringFunc(code, func(x string) string {
		return s.Pipe.Render(x)
	})
}
