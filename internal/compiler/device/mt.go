package device

import (
	"fmt"
	"net"

	"gopkg.in/yaml.v3"

	"github.com/arnavsurve/s7gen/internal/compiler/ast"
	"github.com/arnavsurve/s7gen/internal/compiler/emitter"
	"github.com/arnavsurve/s7gen/internal/compiler/express"
	"github.com/arnavsurve/s7gen/internal/compiler/lib"
	"github.com/arnavsurve/s7gen/internal/compiler/symbols"
)

const (
	MTName       = "MT_Poll"
	MTLoopName   = "MT_Loop"
	MTPollsDB    = "MT_Polls"
	modbusPort   = 502
	defaultUnit  = 255
	maxPollWords = 125
)

// MT polls Modbus/TCP servers.
func MT() *Feature {
	return &Feature{
		Name:      "MT",
		Aliases:   []string{"modbusTCP"},
		Platforms: []string{"step7", "portal"},
		Builtins: []symbols.Builtin{
			{Name: MTName, Address: "FB345", Comment: "modbus TCP poll FB"},
			{Name: MTLoopName, Address: "FC345", Comment: "main modbus TCP cyclic call function"},
		},
		ParseSymbols: parseMT,
		Build:        buildMT,
		Generate:     generateMT,
		CopyList:     func(a *Area) []emitter.Copy { return copyFromLib(a, MTName) },
	}
}

var modbusFuncs = map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true, 6: true, 15: true, 16: true}

type mtPoll struct {
	ID        int
	Comment   string
	UnitID    int
	Func      int
	Address   int
	Length    int
	RecvDB    express.Value
	RecvStart int

	RecvDBNo int
}

type mtConnection struct {
	ID      int
	Comment string
	Host    string
	IP      [4]int
	Port    int
	DB      express.Value
	Polls   []*mtPoll
}

type mtData struct {
	PollsDB     express.Value
	Connections []*mtConnection
}

func parseMT(a *Area) error {
	if err := requireList(a); err != nil {
		return err
	}
	data := &mtData{}
	pollsName := a.Doc.Options.Extra["polls_DB"]
	if pollsName == "" {
		pollsName = MTPollsDB
	}
	a.Bind(ast.Scalar(pollsName), &data.PollsDB, express.Options{
		Type: "DB", Comment: "modbus TCP poll definitions", Desc: "MT polls_DB", Define: true, NoCompound: true,
	})

	for _, node := range a.Doc.List {
		conn, err := parseConnection(a, node)
		if err != nil {
			return err
		}
		data.Connections = append(data.Connections, conn)
	}
	a.data = data
	return nil
}

func parseConnection(a *Area, node *yaml.Node) (*mtConnection, error) {
	conn := &mtConnection{
		Comment: ast.GetString(node, "comment"),
		Host:    ast.GetString(node, "host"),
	}
	ip := net.ParseIP(conn.Host).To4()
	if ip == nil {
		return nil, fmt.Errorf("%w: MT host %q is not an IPv4 address", lib.ErrMalformedExpression, conn.Host)
	}
	for i, b := range ip {
		conn.IP[i] = int(b)
	}
	var err error
	if conn.Port, err = ast.GetInt(node, "port", modbusPort); err != nil {
		return nil, err
	}
	if conn.Port <= 0 || conn.Port > 65535 {
		return nil, fmt.Errorf("%w: MT port %d", lib.ErrMalformedExpression, conn.Port)
	}
	id, err := ast.GetInt(node, "ID", 0)
	if err != nil {
		return nil, err
	}
	if conn.ID, err = a.CPU.ClaimConnection(conn.Host, conn.Port, id); err != nil {
		return nil, err
	}

	db := ast.Get(node, "DB")
	if err := required(db, "DB", a); err != nil {
		return nil, err
	}
	a.Bind(db, &conn.DB, express.Options{Type: MTName, Comment: conn.Comment, Desc: "MT DB", Define: true, NoCompound: true})

	for _, item := range ast.Seq(ast.Get(node, "polls")) {
		poll, err := parsePoll(a, item)
		if err != nil {
			return nil, err
		}
		conn.Polls = append(conn.Polls, poll)
	}
	return conn, nil
}

func parsePoll(a *Area, node *yaml.Node) (*mtPoll, error) {
	poll := &mtPoll{Comment: ast.GetString(node, "comment")}
	var err error
	if poll.UnitID, err = ast.GetInt(node, "unit_ID", defaultUnit); err != nil {
		return nil, err
	}
	if poll.Func, err = ast.GetInt(node, "func", 0); err != nil {
		return nil, err
	}
	if !modbusFuncs[poll.Func] {
		return nil, fmt.Errorf("%w: MT poll function %d", lib.ErrMalformedExpression, poll.Func)
	}
	if poll.Address, err = ast.GetInt(node, "address", -1); err != nil {
		return nil, err
	}
	if poll.Address < 0 || poll.Address > 0xFFFF {
		return nil, fmt.Errorf("%w: MT poll address", lib.ErrMissingRequiredField)
	}
	if poll.Length, err = ast.GetInt(node, "length", 0); err != nil {
		return nil, err
	}
	if poll.Length <= 0 || poll.Length > maxPollWords {
		return nil, fmt.Errorf("%w: MT poll length %d", lib.ErrMalformedExpression, poll.Length)
	}
	if poll.RecvStart, err = ast.GetInt(node, "recv_start", 0); err != nil {
		return nil, err
	}

	recv := ast.Get(node, "recv_DB")
	if err := required(recv, "recv_DB", a); err != nil {
		return nil, err
	}
	a.Bind(recv, &poll.RecvDB, express.Options{Type: "DB", Comment: poll.Comment, Desc: "MT recv_DB", Define: true, NoCompound: true})
	poll.ID = a.CPU.Alloc.Poll.Allocate()
	return poll, nil
}

func buildMT(a *Area) error {
	for _, conn := range a.data.(*mtData).Connections {
		for _, poll := range conn.Polls {
			if poll.RecvDB.Symbol == nil || !poll.RecvDB.Symbol.Address.IsBlock() {
				return fmt.Errorf("%w: MT poll %d recv_DB must be a DB", lib.ErrTypeConflict, poll.ID)
			}
			poll.RecvDBNo = poll.RecvDB.Symbol.BlockNo()
		}
	}
	return nil
}

func generateMT(a *Area) ([]emitter.Rule, error) {
	data := a.data.(*mtData)
	return []emitter.Rule{{
		Path:     a.OutputFile(MTLoopName, ".scl"),
		Template: lookupTemplate("mt.tmpl"),
		Tags: map[string]any{
			"Header":      a.Header(),
			"PollsDB":     data.PollsDB,
			"Connections": data.Connections,
			"Name":        MTName,
			"LoopName":    MTLoopName,
		},
	}}, nil
}
