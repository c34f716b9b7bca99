package device

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/arnavsurve/s7gen/internal/compiler/ast"
	"github.com/arnavsurve/s7gen/internal/compiler/emitter"
	"github.com/arnavsurve/s7gen/internal/compiler/express"
	"github.com/arnavsurve/s7gen/internal/compiler/lib"
	"github.com/arnavsurve/s7gen/internal/compiler/symbols"
)

const (
	PIName     = "PI_Proc"
	PILoopName = "PI_Loop"
	FM3502Type = "FM350-2"
)

// PI handles FM350-2 pulse counter modules.
func PI() *Feature {
	return &Feature{
		Name:      "PI",
		Platforms: []string{"step7"},
		Builtins: []symbols.Builtin{
			{Name: PIName, Address: "FB350", Comment: "PI main FB"},
			{Name: PILoopName, Address: "FC350", Comment: "main PI cyclic call function"},
			{Name: FM3502Type, Address: "UDT350", Comment: "FM350-2 count DB"},
		},
		ParseSymbols: parsePI,
		Build:        buildPI,
		Generate:     generatePI,
		CopyList:     func(a *Area) []emitter.Copy { return copyFromLib(a, PIName) },
	}
}

type piModule struct {
	Type    string
	Comment string

	DB         express.Value
	CountDB    express.Value
	ModuleAddr express.Value

	ModuleNo  string
	ChannelNo string
	CountDBNo int
}

func parsePI(a *Area) error {
	if err := requireList(a); err != nil {
		return err
	}
	var modules []*piModule
	for i, node := range a.Doc.List {
		m := &piModule{
			Type:    ast.GetString(node, "type"),
			Comment: ast.GetString(node, "comment"),
		}
		if m.Type == "" {
			m.Type = FM3502Type
		}
		if m.Type != FM3502Type {
			return fmt.Errorf("%w: PI module type %q", lib.ErrUnsupportedDocumentType, m.Type)
		}

		db := ast.Get(node, "DB")
		if err := required(db, "DB", a); err != nil {
			return err
		}
		countDB := ast.Get(node, "count_DB")
		if err := required(countDB, "count_DB", a); err != nil {
			return err
		}
		addr := ast.Get(node, "module_addr")
		if err := required(addr, "module_addr", a); err != nil {
			return err
		}
		// a bare number is the module's input word
		if n, err := strconv.Atoi(ast.String(addr)); err == nil {
			addr = &yaml.Node{Kind: yaml.SequenceNode, Content: []*yaml.Node{
				ast.Scalar(fmt.Sprintf("%s_%d_addr", m.Type, i+1)),
				ast.Scalar(fmt.Sprintf("IW%d", n)),
			}}
		}

		a.Bind(db, &m.DB, express.Options{Type: PIName, Comment: m.Comment, Desc: "PI DB", Define: true, NoCompound: true})
		a.Bind(countDB, &m.CountDB, express.Options{Type: FM3502Type, Comment: m.Comment, Desc: "PI count_DB", Define: true, NoCompound: true})
		a.Bind(addr, &m.ModuleAddr, express.Options{Type: "WORD", Desc: "PI module_addr", NoCompound: true})
		modules = append(modules, m)
	}
	a.data = modules
	return nil
}

func buildPI(a *Area) error {
	for _, m := range a.data.([]*piModule) {
		if m.ModuleAddr.Symbol == nil || m.CountDB.Symbol == nil {
			return fmt.Errorf("%w: PI module %s needs a symbolic module_addr and count_DB", lib.ErrMalformedExpression, m.DB.Value)
		}
		no := m.ModuleAddr.Symbol.Address.Byte
		m.ModuleNo = lib.FixedHex(no, 4)
		m.ChannelNo = lib.FixedHex(no*8, 8)
		m.CountDBNo = m.CountDB.Symbol.BlockNo()
	}
	return nil
}

func generatePI(a *Area) ([]emitter.Rule, error) {
	return []emitter.Rule{{
		Path:     a.OutputFile(PILoopName, ".scl"),
		Template: lookupTemplate("pi.tmpl"),
		Tags: map[string]any{
			"Header":    a.Header(),
			"Modules":   a.data.([]*piModule),
			"Name":      PIName,
			"LoopName":  PILoopName,
			"CountType": FM3502Type,
		},
	}}, nil
}
