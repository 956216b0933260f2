package hcl

import (
	"github.com/hashicorp/hcl/v2"
)

var rootSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "require", LabelNames: []string{"name"}},
		{Type: "element", LabelNames: []string{"name"}},
		{Type: "connect"},
	},
}

// requireBody is empty today; the block exists for its label.
type requireBody struct {
	Remain hcl.Body `hcl:",remain"`
}

type elementBody struct {
	Class  string         `hcl:"class"`
	Config hcl.Expression `hcl:"config,optional"`
	Thread *int           `hcl:"thread,optional"`
}

type connectBody struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}
