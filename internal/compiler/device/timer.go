package device

import (
	"github.com/arnavsurve/s7gen/internal/compiler/ast"
	"github.com/arnavsurve/s7gen/internal/compiler/emitter"
	"github.com/arnavsurve/s7gen/internal/compiler/express"
	"github.com/arnavsurve/s7gen/internal/compiler/symbols"
)

const (
	TimerName     = "Timer_Proc"
	TimerLoopName = "Timer_Loop"
	defaultPPS    = "Pulse_1Hz"
)

func Timer() *Feature {
	return &Feature{
		Name:      "timer",
		Platforms: []string{"step7"},
		Builtins: []symbols.Builtin{
			{Name: TimerName, Address: "FB522", Comment: "timer main FB"},
			{Name: TimerLoopName, Address: "FC522", Comment: "main timer cyclic call function"},
		},
		ParseSymbols: parseTimer,
		Generate:     generateTimer,
		CopyList:     func(a *Area) []emitter.Copy { return copyFromLib(a, TimerName) },
	}
}

type timerItem struct {
	Comment string
	DB      express.Value
	Enable  express.Value
	Reset   express.Value
	PPS     express.Value
}

func parseTimer(a *Area) error {
	if err := requireList(a); err != nil {
		return err
	}
	var timers []*timerItem
	for _, node := range a.Doc.List {
		t := &timerItem{Comment: ast.GetString(node, "comment")}
		db := ast.Get(node, "DB")
		if err := required(db, "DB", a); err != nil {
			return err
		}
		a.Bind(db, &t.DB, express.Options{Type: TimerName, Comment: t.Comment, Desc: "timer DB", Define: true, NoCompound: true})

		opts := express.Options{Type: "BOOL", Desc: "timer input"}
		a.Bind(ast.Get(node, "enable"), &t.Enable, opts)
		a.Bind(ast.Get(node, "reset"), &t.Reset, opts)
		pps := ast.Get(node, "PPS")
		if ast.IsNull(pps) {
			pps = ast.Scalar(defaultPPS)
		}
		a.Bind(pps, &t.PPS, opts)
		timers = append(timers, t)
	}
	a.data = timers
	return nil
}

func generateTimer(a *Area) ([]emitter.Rule, error) {
	return []emitter.Rule{{
		Path:     a.OutputFile(TimerLoopName, ".scl"),
		Template: lookupTemplate("timer.tmpl"),
		Tags: map[string]any{
			"Header":   a.Header(),
			"Timers":   a.data.([]*timerItem),
			"Name":     TimerName,
			"LoopName": TimerLoopName,
		},
	}}, nil
}
