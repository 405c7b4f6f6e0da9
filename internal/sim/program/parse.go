package program

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"voxelcolony.ai/internal/protocol"
	"voxelcolony.ai/internal/sim/geom"
	"voxelcolony.ai/internal/sim/script"
)

var ErrSyntax = protocol.NewError(protocol.ErrBadRequest, "invalid program", nil)

// ParseStatement decodes one statement from YAML source.
func ParseStatement(src []byte) (script.Statement, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, fmt.Errorf("%w: empty program", ErrSyntax)
	}
	return Statement(doc.Content[0])
}

func syntaxError(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("%w: line %d column %d: %s", ErrSyntax, n.Line, n.Column, fmt.Sprintf(format, args...))
}

// node splits a single-key mapping or a bare scalar into kind and operand.
func node(n *yaml.Node) (string, *yaml.Node, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Value, nil, nil
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			return "", nil, syntaxError(n, "expected exactly one key, got %d", len(n.Content)/2)
		}
		return n.Content[0].Value, n.Content[1], nil
	default:
		return "", nil, syntaxError(n, "expected a mapping or a name")
	}
}

func operand(n *yaml.Node, kind string, arg *yaml.Node) (*yaml.Node, error) {
	if arg == nil {
		return nil, syntaxError(n, "%s needs an operand", kind)
	}
	return arg, nil
}

// fields reads the keys of a mapping operand. Unknown keys are rejected.
func fields(parent, n *yaml.Node, kind string, allowed ...string) (map[string]*yaml.Node, error) {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, syntaxError(parent, "%s expects a mapping", kind)
	}
	out := map[string]*yaml.Node{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i]
		ok := false
		for _, a := range allowed {
			if k.Value == a {
				ok = true
				break
			}
		}
		if !ok {
			return nil, syntaxError(k, "%s has no field %q", kind, k.Value)
		}
		if _, dup := out[k.Value]; dup {
			return nil, syntaxError(k, "%s repeats field %q", kind, k.Value)
		}
		out[k.Value] = n.Content[i+1]
	}
	return out, nil
}

func required(parent *yaml.Node, f map[string]*yaml.Node, kind, name string) (*yaml.Node, error) {
	v, ok := f[name]
	if !ok {
		return nil, syntaxError(parent, "%s needs %q", kind, name)
	}
	return v, nil
}

// Statement decodes a statement node.
func Statement(n *yaml.Node) (script.Statement, error) {
	if n.Kind == yaml.SequenceNode {
		return sequence(n)
	}
	kind, arg, err := node(n)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "sequence":
		if arg == nil || arg.Kind != yaml.SequenceNode {
			return nil, syntaxError(n, "sequence expects a list")
		}
		return sequence(arg)
	case "break":
		return script.Break{}, nil
	case "assign":
		return assign(n, arg)
	case "print":
		return printStmt(n, arg)
	case "if":
		f, err := fields(n, arg, kind, "condition", "then", "else")
		if err != nil {
			return nil, err
		}
		cond, err := conditionField(n, f, kind)
		if err != nil {
			return nil, err
		}
		then, err := required(n, f, kind, "then")
		if err != nil {
			return nil, err
		}
		s := &script.If{Condition: cond}
		if s.Then, err = Statement(then); err != nil {
			return nil, err
		}
		if els, ok := f["else"]; ok {
			if s.Else, err = Statement(els); err != nil {
				return nil, err
			}
		}
		return s, nil
	case "while":
		f, err := fields(n, arg, kind, "condition", "body")
		if err != nil {
			return nil, err
		}
		cond, err := conditionField(n, f, kind)
		if err != nil {
			return nil, err
		}
		body, err := required(n, f, kind, "body")
		if err != nil {
			return nil, err
		}
		s := &script.While{Condition: cond}
		if s.Body, err = Statement(body); err != nil {
			return nil, err
		}
		return s, nil
	case "move_to", "work_at":
		arg, err := operand(n, kind, arg)
		if err != nil {
			return nil, err
		}
		p, err := Position(arg)
		if err != nil {
			return nil, err
		}
		if kind == "move_to" {
			return &script.MoveTo{Target: p}, nil
		}
		return &script.WorkAt{Target: p}, nil
	case "follow", "attack":
		arg, err := operand(n, kind, arg)
		if err != nil {
			return nil, err
		}
		u, err := Unit(arg)
		if err != nil {
			return nil, err
		}
		if kind == "follow" {
			return &script.Follow{Target: u}, nil
		}
		return &script.Attack{Target: u}, nil
	default:
		return nil, syntaxError(n, "unknown statement %q", kind)
	}
}

func sequence(list *yaml.Node) (script.Statement, error) {
	children := make([]script.Statement, 0, len(list.Content))
	for _, c := range list.Content {
		s, err := Statement(c)
		if err != nil {
			return nil, err
		}
		children = append(children, s)
	}
	return script.NewSequence(children...), nil
}

func conditionField(parent *yaml.Node, f map[string]*yaml.Node, kind string) (script.Expression[bool], error) {
	c, err := required(parent, f, kind, "condition")
	if err != nil {
		return nil, err
	}
	return Bool(c)
}

// assign: {name: x, boolean|position|unit: <expression>}
func assign(n, arg *yaml.Node) (script.Statement, error) {
	f, err := fields(n, arg, "assign", "name", "boolean", "position", "unit")
	if err != nil {
		return nil, err
	}
	nameNode, err := required(n, f, "assign", "name")
	if err != nil {
		return nil, err
	}
	name := nameNode.Value
	if nameNode.Kind != yaml.ScalarNode || name == "" {
		return nil, syntaxError(nameNode, "assign needs a variable name")
	}
	delete(f, "name")
	kind, v, err := typedOperand(n, f, "assign")
	if err != nil {
		return nil, err
	}
	switch kind {
	case "boolean":
		e, err := Bool(v)
		if err != nil {
			return nil, err
		}
		return &script.Assign[bool]{Name: name, Value: e}, nil
	case "position":
		e, err := Position(v)
		if err != nil {
			return nil, err
		}
		return &script.Assign[script.Position]{Name: name, Value: e}, nil
	default:
		e, err := Unit(v)
		if err != nil {
			return nil, err
		}
		return &script.Assign[script.Actor]{Name: name, Value: e}, nil
	}
}

// print: {boolean|position|unit: <expression>}
func printStmt(n, arg *yaml.Node) (script.Statement, error) {
	f, err := fields(n, arg, "print", "boolean", "position", "unit")
	if err != nil {
		return nil, err
	}
	kind, v, err := typedOperand(n, f, "print")
	if err != nil {
		return nil, err
	}
	switch kind {
	case "boolean":
		e, err := Bool(v)
		if err != nil {
			return nil, err
		}
		return &script.Print[bool]{Value: e}, nil
	case "position":
		e, err := Position(v)
		if err != nil {
			return nil, err
		}
		return &script.Print[script.Position]{Value: e}, nil
	default:
		e, err := Unit(v)
		if err != nil {
			return nil, err
		}
		return &script.Print[script.Actor]{Value: e}, nil
	}
}

func typedOperand(n *yaml.Node, f map[string]*yaml.Node, stmt string) (string, *yaml.Node, error) {
	if len(f) != 1 {
		return "", nil, syntaxError(n, "%s needs exactly one of boolean, position or unit", stmt)
	}
	for k, v := range f {
		return k, v, nil
	}
	return "", nil, nil
}

// Bool decodes a boolean expression.
func Bool(n *yaml.Node) (script.Expression[bool], error) {
	kind, arg, err := node(n)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "true":
		return script.True(), nil
	case "false":
		return script.False(), nil
	case "var":
		name, err := varName(n, arg)
		if err != nil {
			return nil, err
		}
		return script.ReadVariable[bool]{Name: name}, nil
	case "not":
		arg, err := operand(n, kind, arg)
		if err != nil {
			return nil, err
		}
		e, err := Bool(arg)
		if err != nil {
			return nil, err
		}
		return script.Not{Operand: e}, nil
	case "and", "or":
		if arg == nil || arg.Kind != yaml.SequenceNode || len(arg.Content) < 2 {
			return nil, syntaxError(n, "%s expects a list of at least two operands", kind)
		}
		acc, err := Bool(arg.Content[0])
		if err != nil {
			return nil, err
		}
		for _, c := range arg.Content[1:] {
			r, err := Bool(c)
			if err != nil {
				return nil, err
			}
			if kind == "and" {
				acc = script.And{Left: acc, Right: r}
			} else {
				acc = script.Or{Left: acc, Right: r}
			}
		}
		return acc, nil
	case "is_solid", "is_passable":
		arg, err := operand(n, kind, arg)
		if err != nil {
			return nil, err
		}
		p, err := Position(arg)
		if err != nil {
			return nil, err
		}
		if kind == "is_solid" {
			return script.IsSolid{Position: p}, nil
		}
		return script.IsPassable{Position: p}, nil
	case "is_friend", "is_enemy", "is_alive", "carries_item":
		arg, err := operand(n, kind, arg)
		if err != nil {
			return nil, err
		}
		u, err := Unit(arg)
		if err != nil {
			return nil, err
		}
		switch kind {
		case "is_friend":
			return script.IsFriend{Unit: u}, nil
		case "is_enemy":
			return script.IsEnemy{Unit: u}, nil
		case "is_alive":
			return script.IsAlive{Unit: u}, nil
		default:
			return script.CarriesItem{Unit: u}, nil
		}
	default:
		return nil, syntaxError(n, "unknown boolean expression %q", kind)
	}
}

// Position decodes a position expression. A flow sequence [x, y, z] is a
// literal cube.
func Position(n *yaml.Node) (script.Expression[script.Position], error) {
	if n.Kind == yaml.SequenceNode {
		return cubeLiteral(n)
	}
	kind, arg, err := node(n)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "here":
		return script.Here{}, nil
	case "selected":
		return script.Selected{}, nil
	case "none":
		return script.Literal[script.Position]{Value: script.None}, nil
	case "log":
		return script.LogPosition{}, nil
	case "boulder":
		return script.BoulderPosition{}, nil
	case "workshop":
		return script.WorkshopPosition{}, nil
	case "var":
		name, err := varName(n, arg)
		if err != nil {
			return nil, err
		}
		return script.ReadVariable[script.Position]{Name: name}, nil
	case "cube":
		arg, err := operand(n, kind, arg)
		if err != nil {
			return nil, err
		}
		return cubeLiteral(arg)
	case "position_of":
		arg, err := operand(n, kind, arg)
		if err != nil {
			return nil, err
		}
		u, err := Unit(arg)
		if err != nil {
			return nil, err
		}
		return script.PositionOf{Unit: u}, nil
	case "next_to":
		arg, err := operand(n, kind, arg)
		if err != nil {
			return nil, err
		}
		p, err := Position(arg)
		if err != nil {
			return nil, err
		}
		return script.NextTo{Position: p}, nil
	default:
		return nil, syntaxError(n, "unknown position expression %q", kind)
	}
}

func cubeLiteral(n *yaml.Node) (script.Expression[script.Position], error) {
	if n.Kind != yaml.SequenceNode || len(n.Content) != 3 {
		return nil, syntaxError(n, "a cube is a list of three integers")
	}
	var xyz [3]int
	for i, c := range n.Content {
		v, err := strconv.Atoi(c.Value)
		if err != nil || c.Kind != yaml.ScalarNode {
			return nil, syntaxError(c, "cube coordinate %q is not an integer", c.Value)
		}
		xyz[i] = v
	}
	return script.Literal[script.Position]{Value: script.At(geom.Cube{X: xyz[0], Y: xyz[1], Z: xyz[2]})}, nil
}

// Unit decodes a unit expression.
func Unit(n *yaml.Node) (script.Expression[script.Actor], error) {
	kind, arg, err := node(n)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "this":
		return script.This{}, nil
	case "nearest_unit":
		return script.Any{}, nil
	case "nearest_friend":
		return script.Friend{}, nil
	case "nearest_enemy":
		return script.Enemy{}, nil
	case "var":
		name, err := varName(n, arg)
		if err != nil {
			return nil, err
		}
		return script.ReadVariable[script.Actor]{Name: name}, nil
	default:
		return nil, syntaxError(n, "unknown unit expression %q", kind)
	}
}

func varName(n, arg *yaml.Node) (string, error) {
	if arg == nil || arg.Kind != yaml.ScalarNode || arg.Value == "" {
		return "", syntaxError(n, "var needs a variable name")
	}
	return arg.Value, nil
}
