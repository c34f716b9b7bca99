package device

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mileusna/conditional"

	"github.com/arnavsurve/s7gen/internal/compiler/ast"
	"github.com/arnavsurve/s7gen/internal/compiler/emitter"
	"github.com/arnavsurve/s7gen/internal/compiler/express"
	"github.com/arnavsurve/s7gen/internal/compiler/lib"
	"github.com/arnavsurve/s7gen/internal/compiler/symbols"
)

const InterlockLoopName = "Interlock_Loop"

// Edge triggers of interlock inputs.
const (
	TriggerRising  = "rising"
	TriggerFalling = "falling"
	TriggerChange  = "change"
	TriggerOn      = "on"
	TriggerOff     = "off"
)

func Interlock() *Feature {
	return &Feature{
		Name:      "interlock",
		Aliases:   []string{"IL"},
		Platforms: []string{"step7", "portal"},
		Builtins: []symbols.Builtin{
			{Name: InterlockLoopName, Address: "FC518", Comment: "interlock main cyclic call function"},
		},
		ParseSymbols: parseInterlock,
		Build:        buildInterlock,
		Generate:     generateInterlock,
	}
}

// ilField is a member of an interlock DB.
type ilField struct {
	Name     string
	Type     string
	Init     string
	Comment  string
	Declared bool

	Read     express.Value
	Write    express.Value
	hasRead  bool
	hasWrite bool
}

func (f *ilField) Declaration() string {
	init := ""
	if f.Init != "" {
		init = " := " + f.Init
	}
	return fmt.Sprintf("%s {S7_m_c := 'true'} : %s%s ;", f.Name, f.Type, init)
}

// ilOperand is an input, reset or output of an interlock.
type ilOperand struct {
	Name        string
	Comment     string
	Ref         *ilField // the DB member it names, if any
	Value       express.Value
	Items       []*ilOperand // and group
	TriggerType string

	Trigger    string
	EdgeField  string
	Resettable bool
	SetValue   string
	ResetValue string
	Reset      *ilOperand
}

type interlock struct {
	Comment   string
	ExtraCode string
	Inputs    []*ilOperand
	Resets    []*ilOperand
	Outputs   []*ilOperand

	ResetExpr  string
	OutputExpr string
}

type ilDB struct {
	Name       string
	Quoted     string
	Comment    string
	Symbol     express.Value
	Interlocks []*interlock
	Edges      []*ilOperand

	fields     []*ilField
	byName     map[string]*ilField
	auto       int
	enableRead bool
	enableInit bool

	Declarations []*ilField
	ReadList     []string
	WriteList    []string
}

func newILDB(name string) *ilDB {
	db := &ilDB{Name: name, Quoted: lib.Quote(name), byName: map[string]*ilField{}}
	db.add(&ilField{Name: "enable", Type: "BOOL", Init: "TRUE", Comment: "enable alarm or interlock", Declared: true})
	return db
}

func (db *ilDB) add(f *ilField) error {
	if _, ok := db.byName[f.Name]; ok {
		return fmt.Errorf("%w: interlock DB %s field %q is defined twice or reserved", lib.ErrDuplicateDefinition, db.Name, f.Name)
	}
	db.fields = append(db.fields, f)
	db.byName[f.Name] = f
	return nil
}

// nextName names an anonymous operand b_1, b_2 ...
func (db *ilDB) nextName() (string, error) {
	db.auto++
	name := fmt.Sprintf("b_%d", db.auto)
	if err := db.add(&ilField{Name: name}); err != nil {
		return "", err
	}
	return name, nil
}

func (db *ilDB) member(name string) string {
	return db.Quoted + "." + name
}

type ilParser struct {
	a     *Area
	dbs   []*ilDB
	byKey map[string]*ilDB
}

func parseInterlock(a *Area) error {
	if err := requireList(a); err != nil {
		return err
	}
	p := &ilParser{a: a, byKey: map[string]*ilDB{}}
	for _, node := range a.Doc.List {
		if err := p.parseNode(node); err != nil {
			return err
		}
	}
	a.data = p.dbs
	return nil
}

func dbName(node *yaml.Node) string {
	if node.Kind == yaml.SequenceNode && len(node.Content) > 0 {
		return node.Content[0].Value
	}
	return strings.Trim(strings.TrimSpace(ast.String(node)), `"`)
}

func (p *ilParser) db(node *yaml.Node, comment string) (*ilDB, error) {
	name := dbName(node)
	if name == "" {
		return nil, fmt.Errorf("%w: interlock DB must be a name or a symbol definition", lib.ErrMalformedExpression)
	}
	opts := express.Options{Type: "DB", Comment: comment, Desc: "interlock DB", Define: true, NoCompound: true}
	if db, ok := p.byKey[name]; ok {
		// repeated definitions still have to agree with the first one
		p.a.Resolve(node, opts)
		return db, nil
	}
	db := newILDB(name)
	p.a.Bind(node, &db.Symbol, opts)
	p.byKey[name] = db
	p.dbs = append(p.dbs, db)
	return db, nil
}

func (p *ilParser) parseNode(node *yaml.Node) error {
	dbNode := ast.Get(node, "DB")
	if err := required(dbNode, "DB", p.a); err != nil {
		return err
	}
	comment := ast.GetString(node, "comment")
	if comment == "" {
		comment = "alarm interlock"
	}
	db, err := p.db(dbNode, comment)
	if err != nil {
		return err
	}
	desc := func(what string) string { return fmt.Sprintf("interlock DB:%s %s", db.Name, what) }

	if enable := ast.Get(node, "enable"); !ast.IsNull(enable) {
		if db.enableRead {
			return fmt.Errorf("%w: %s", lib.ErrDuplicateDefinition, desc("enable"))
		}
		db.enableRead = true
		f := db.byName["enable"]
		f.hasRead = true
		p.a.Bind(enable, &f.Read, express.Options{Type: "BOOL", Desc: desc("enable.read")})
	}
	if init := ast.Get(node, "$enable"); !ast.IsNull(init) {
		if db.enableInit {
			return fmt.Errorf("%w: %s", lib.ErrDuplicateDefinition, desc("$enable"))
		}
		db.enableInit = true
		db.byName["enable"].Init = conditional.String(ast.GetBool(node, "$enable", true), "TRUE", "FALSE")
	}

	il := &interlock{Comment: comment, ExtraCode: ast.GetString(node, "extra_code")}
	trigger := strings.ToLower(ast.GetString(node, "trigger"))
	if trigger == "" {
		trigger = TriggerRising
	}
	if err := checkTrigger(trigger); err != nil {
		return err
	}

	if err := p.parseData(db, ast.Get(node, "data"), desc); err != nil {
		return err
	}

	inputs := ast.Get(node, "input")
	if inputs == nil || inputs.Kind != yaml.SequenceNode || len(inputs.Content) == 0 {
		return fmt.Errorf("%w: %s needs at least one input", lib.ErrMissingRequiredField, desc("input"))
	}
	for _, item := range inputs.Content {
		in, err := p.parseInput(db, item, trigger, desc)
		if err != nil {
			return err
		}
		if in.Name, err = db.nextName(); err != nil {
			return err
		}
		il.Inputs = append(il.Inputs, in)
	}

	resets := ast.Get(node, "reset")
	if !ast.IsNull(resets) && resets.Kind != yaml.SequenceNode {
		return fmt.Errorf("%w: %s must be a list", lib.ErrMalformedExpression, desc("reset"))
	}
	for _, item := range ast.Seq(resets) {
		r, err := p.parseReset(db, item, desc)
		if err != nil {
			return err
		}
		il.Resets = append(il.Resets, r)
	}

	outputs := ast.Get(node, "output")
	if !ast.IsNull(outputs) && outputs.Kind != yaml.SequenceNode {
		return fmt.Errorf("%w: %s must be a list", lib.ErrMalformedExpression, desc("output"))
	}
	for _, item := range ast.Seq(outputs) {
		o, err := p.parseOutput(db, item, desc)
		if err != nil {
			return err
		}
		il.Outputs = append(il.Outputs, o)
	}

	db.Interlocks = append(db.Interlocks, il)
	return nil
}

func checkTrigger(t string) error {
	switch t {
	case TriggerRising, TriggerFalling, TriggerChange, TriggerOn, TriggerOff:
		return nil
	}
	return fmt.Errorf("%w: unknown interlock trigger %q", lib.ErrMalformedExpression, t)
}

func (p *ilParser) parseData(db *ilDB, node *yaml.Node, desc func(string) string) error {
	if ast.IsNull(node) {
		return nil
	}
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("%w: %s must be a list", lib.ErrMalformedExpression, desc("data"))
	}
	for _, item := range node.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			if err := db.add(&ilField{Name: item.Value, Type: "BOOL", Declared: true}); err != nil {
				return err
			}
		case yaml.MappingNode:
			f := &ilField{
				Name:     ast.GetString(item, "name"),
				Comment:  ast.GetString(item, "comment"),
				Type:     symbols.NormalizeType(ast.GetString(item, "type")),
				Declared: true,
			}
			if f.Name == "" {
				return fmt.Errorf("%w: %s name", lib.ErrMissingRequiredField, desc("data"))
			}
			if !symbols.IsPrimitive(f.Type) {
				f.Type = "BOOL"
			}
			if err := db.add(f); err != nil {
				return err
			}
			opts := express.Options{Type: f.Type, Comment: f.Comment}
			if read := ast.Get(item, "read"); !ast.IsNull(read) {
				f.hasRead = true
				opts.Desc = desc(f.Name + ".read")
				p.a.Bind(read, &f.Read, opts)
			}
			if write := ast.Get(item, "write"); !ast.IsNull(write) {
				f.hasWrite = true
				opts.Desc = desc(f.Name + ".write")
				opts.NoCompound = true
				p.a.Bind(write, &f.Write, opts)
			}
		default:
			return fmt.Errorf("%w: %s item", lib.ErrMalformedExpression, desc("data"))
		}
	}
	return nil
}

// operand parses a data field name, a symbol, an address or an SCL
// expression. It returns nil for mappings.
func (p *ilParser) operand(db *ilDB, item *yaml.Node, opts express.Options) *ilOperand {
	if ast.IsNull(item) || item.Kind == yaml.MappingNode {
		return nil
	}
	op := &ilOperand{}
	if item.Kind == yaml.ScalarNode {
		if f, ok := db.byName[item.Value]; ok && f.Declared {
			op.Ref = f
			op.Value = express.Value{Value: db.member(f.Name)}
			return op
		}
	}
	opts.Type = "BOOL"
	p.a.Bind(item, &op.Value, opts)
	return op
}

func (p *ilParser) parseInput(db *ilDB, item *yaml.Node, trigger string, desc func(string) string) (*ilOperand, error) {
	if in := p.operand(db, item, express.Options{Desc: desc("input.value")}); in != nil {
		in.TriggerType = trigger
		return in, nil
	}
	if ast.IsNull(item) {
		return nil, fmt.Errorf("%w: %s", lib.ErrMissingRequiredField, desc("input"))
	}

	t := strings.ToLower(ast.GetString(item, "trigger"))
	if t == "" {
		t = trigger
	}
	if err := checkTrigger(t); err != nil {
		return nil, err
	}
	comment := ast.GetString(item, "comment")

	if and := ast.Get(item, "and"); !ast.IsNull(and) {
		if and.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("%w: %s must be a list", lib.ErrMalformedExpression, desc("input.and"))
		}
		in := &ilOperand{TriggerType: t, Comment: comment}
		for _, sub := range and.Content {
			op := p.operand(db, sub, express.Options{Desc: desc("input.and")})
			if op == nil {
				return nil, fmt.Errorf("%w: %s items must be expressions", lib.ErrMalformedExpression, desc("input.and"))
			}
			in.Items = append(in.Items, op)
		}
		return in, nil
	}

	in := p.operand(db, ast.Get(item, "value"), express.Options{Desc: desc("input.value"), Comment: comment})
	if in == nil {
		return nil, fmt.Errorf("%w: %s needs a value or an and list", lib.ErrMissingRequiredField, desc("input"))
	}
	in.TriggerType = t
	in.Comment = comment
	return in, nil
}

func (p *ilParser) parseReset(db *ilDB, item *yaml.Node, desc func(string) string) (*ilOperand, error) {
	r := p.operand(db, item, express.Options{Desc: desc("reset.value")})
	if r == nil {
		return nil, fmt.Errorf("%w: %s must be a data field, a symbol or an expression", lib.ErrMalformedExpression, desc("reset"))
	}
	return r, nil
}

func (p *ilParser) parseOutput(db *ilDB, item *yaml.Node, desc func(string) string) (*ilOperand, error) {
	opts := express.Options{Desc: desc("output.value"), NoCompound: true}
	if o := p.operand(db, item, opts); o != nil {
		o.SetValue, o.ResetValue = "TRUE", "FALSE"
		return o, nil
	}
	if ast.IsNull(item) {
		return nil, fmt.Errorf("%w: %s", lib.ErrMissingRequiredField, desc("output"))
	}

	opts.Comment = ast.GetString(item, "comment")
	o := p.operand(db, ast.Get(item, "value"), opts)
	if o == nil {
		return nil, fmt.Errorf("%w: %s value", lib.ErrMissingRequiredField, desc("output"))
	}
	o.Comment = opts.Comment
	inversion := ast.GetBool(item, "inversion", false)
	o.SetValue = conditional.String(inversion, "FALSE", "TRUE")
	o.ResetValue = conditional.String(inversion, "TRUE", "FALSE")
	if reset := ast.Get(item, "reset"); !ast.IsNull(reset) {
		r, err := p.parseReset(db, reset, desc)
		if err != nil {
			return nil, err
		}
		o.Reset = r
	}
	return o, nil
}

func buildInterlock(a *Area) error {
	for _, db := range a.data.([]*ilDB) {
		if db.Symbol.Symbol != nil {
			if db.Symbol.Symbol.Comment == "" && len(db.Interlocks) > 0 {
				db.Symbol.Symbol.Comment = db.Interlocks[0].Comment
			}
			db.Comment = db.Symbol.Symbol.Comment
		}

		db.Declarations, db.ReadList, db.WriteList = nil, nil, nil
		for _, f := range db.fields {
			if !f.Declared {
				continue
			}
			db.Declarations = append(db.Declarations, f)
			if f.hasRead && !f.Read.IsEmpty() {
				db.ReadList = append(db.ReadList, fmt.Sprintf("%s := %s;", db.member(f.Name), f.Read.Value))
			}
			if f.hasWrite && !f.Write.IsEmpty() {
				db.WriteList = append(db.WriteList, fmt.Sprintf("%s := %s;", f.Write.Value, db.member(f.Name)))
			}
		}

		db.Edges = nil
		for _, il := range db.Interlocks {
			var triggers []string
			for _, in := range il.Inputs {
				value := in.Value.Paren()
				if len(in.Items) > 0 {
					parts := make([]string, 0, len(in.Items))
					for _, item := range in.Items {
						parts = append(parts, item.Value.Paren())
					}
					value = strings.Join(parts, " AND ")
					in.Value = express.Value{Value: value, IsCompound: len(parts) > 1}
					value = in.Value.Paren()
				}
				switch in.TriggerType {
				case TriggerOn:
					in.Trigger = value
				case TriggerOff:
					in.Trigger = "NOT " + value
				case TriggerFalling:
					in.EdgeField = in.Name + "_fo"
					in.Trigger = fmt.Sprintf("NOT %s AND %s", value, db.member(in.EdgeField))
				case TriggerChange:
					in.EdgeField = in.Name + "_fo"
					in.Trigger = fmt.Sprintf("%s XOR %s", value, db.member(in.EdgeField))
				default:
					in.EdgeField = in.Name + "_fo"
					in.Trigger = fmt.Sprintf("%s AND NOT %s", value, db.member(in.EdgeField))
				}
				if in.EdgeField != "" {
					db.Edges = append(db.Edges, in)
				}
				triggers = append(triggers, in.Trigger)
			}
			il.OutputExpr = strings.Join(triggers, "\n              OR ")

			resetExpr := []string{"NOT " + db.member("enable")}
			for _, r := range il.Resets {
				r.Resettable = r.Ref != nil && !r.Ref.hasRead
				resetExpr = append(resetExpr, r.Value.Paren())
			}
			il.ResetExpr = strings.Join(resetExpr, "\n         OR ")

			for _, o := range il.Outputs {
				if o.Ref != nil && o.Ref.hasRead {
					return fmt.Errorf("%w: interlock DB:%s output %s has a read source", lib.ErrMalformedExpression, db.Name, o.Ref.Name)
				}
				if o.Reset != nil {
					o.Reset.Resettable = o.Reset.Ref != nil && !o.Reset.Ref.hasRead
				}
			}
		}
	}
	return nil
}

func generateInterlock(a *Area) ([]emitter.Rule, error) {
	return []emitter.Rule{{
		Path:     a.OutputFile(InterlockLoopName, ".scl"),
		Template: lookupTemplate("interlock.tmpl"),
		Tags: map[string]any{
			"Header":   a.Header(),
			"DBs":      a.data.([]*ilDB),
			"LoopName": InterlockLoopName,
		},
	}}, nil
}
