package device

import (
	"github.com/arnavsurve/s7gen/internal/compiler/ast"
	"github.com/arnavsurve/s7gen/internal/compiler/emitter"
	"github.com/arnavsurve/s7gen/internal/compiler/express"
	"github.com/arnavsurve/s7gen/internal/compiler/symbols"
)

const (
	ValveName     = "Valve_Proc"
	ValveLoopName = "Valve_Loop"
)

func Valve() *Feature {
	return &Feature{
		Name:      "valve",
		Platforms: []string{"step7"},
		Builtins: []symbols.Builtin{
			{Name: ValveName, Address: "FB513", Comment: "valve main FB"},
			{Name: ValveLoopName, Address: "FC513", Comment: "main valve cyclic call function"},
		},
		ParseSymbols: parseValve,
		Build:        buildValve,
		Generate:     generateValve,
		CopyList:     func(a *Area) []emitter.Copy { return copyFromLib(a, ValveName) },
	}
}

type valveItem struct {
	Comment string

	DB          express.Value
	AI          express.Value
	CPValue     express.Value
	OPValue     express.Value
	ErrorValue  express.Value
	RemoteValue express.Value
	CloseAction express.Value
	OpenAction  express.Value

	// inputs as passed to the FB, FALSE when not configured
	CP, OP, Error, Remote string
}

func parseValve(a *Area) error {
	if err := requireList(a); err != nil {
		return err
	}
	var valves []*valveItem
	for _, node := range a.Doc.List {
		v := &valveItem{Comment: ast.GetString(node, "comment")}
		db := ast.Get(node, "DB")
		if err := required(db, "DB", a); err != nil {
			return err
		}
		a.Bind(db, &v.DB, express.Options{Type: ValveName, Comment: v.Comment, Desc: "valve DB", Define: true, NoCompound: true})
		a.Bind(ast.Get(node, "AI"), &v.AI, express.Options{Type: "WORD", Desc: "valve AI"})

		in := express.Options{Type: "BOOL", Desc: "valve input"}
		a.Bind(ast.Get(node, "CP"), &v.CPValue, in)
		a.Bind(ast.Get(node, "OP"), &v.OPValue, in)
		a.Bind(ast.Get(node, "error"), &v.ErrorValue, in)
		a.Bind(ast.Get(node, "remote"), &v.RemoteValue, in)

		out := express.Options{Type: "BOOL", Desc: "valve action", NoCompound: true}
		a.Bind(ast.Get(node, "close_action"), &v.CloseAction, out)
		a.Bind(ast.Get(node, "open_action"), &v.OpenAction, out)
		valves = append(valves, v)
	}
	a.data = valves
	return nil
}

func buildValve(a *Area) error {
	for _, v := range a.data.([]*valveItem) {
		v.CP = boolOr(v.CPValue, "FALSE")
		v.OP = boolOr(v.OPValue, "FALSE")
		v.Error = boolOr(v.ErrorValue, "FALSE")
		v.Remote = boolOr(v.RemoteValue, "FALSE")
	}
	return nil
}

func generateValve(a *Area) ([]emitter.Rule, error) {
	return []emitter.Rule{{
		Path:     a.OutputFile(ValveLoopName, ".scl"),
		Template: lookupTemplate("valve.tmpl"),
		Tags: map[string]any{
			"Header":   a.Header(),
			"Valves":   a.data.([]*valveItem),
			"Name":     ValveName,
			"LoopName": ValveLoopName,
		},
	}}, nil
}
