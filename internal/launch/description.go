package launch

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Actions is an ordered action list. It serializes each element as an
// object tagged with its kind.
type Actions []Action

// Description is the generated launch graph of one entry point.
type Description struct {
	Name    string  `json:"name" yaml:"name"`
	Actions Actions `json:"actions" yaml:"actions"`
}

func NewDescription(name string, actions ...Action) *Description {
	return &Description{Name: name, Actions: actions}
}

// Add appends actions, skipping nil ones so generators can add optional
// results unconditionally.
func (d *Description) Add(actions ...Action) {
	for _, a := range actions {
		if a != nil {
			d.Actions = append(d.Actions, a)
		}
	}
}

// Walk visits every action depth first, descending into groups, timers and
// generated includes. Returning false from fn stops the walk.
func (d *Description) Walk(fn func(Action) bool) {
	if d == nil {
		return
	}
	walkActions(d.Actions, fn)
}

func walkActions(actions Actions, fn func(Action) bool) bool {
	for _, a := range actions {
		if !fn(a) {
			return false
		}
		var children Actions
		switch v := a.(type) {
		case *Group:
			children = v.Actions
		case *Timer:
			children = v.Actions
		case *Include:
			if v.Description != nil {
				children = v.Description.Actions
			}
		}
		if !walkActions(children, fn) {
			return false
		}
	}
	return true
}

// ComposableNodes returns every composable node in the graph, whether
// loaded into an existing container or declared with its own.
func (d *Description) ComposableNodes() []ComposableNode {
	var out []ComposableNode
	d.Walk(func(a Action) bool {
		switch v := a.(type) {
		case *LoadComposableNodes:
			out = append(out, v.Nodes...)
		case *ComposableNodeContainer:
			out = append(out, v.Nodes...)
		}
		return true
	})
	return out
}

// Find returns every action of the given kind.
func (d *Description) Find(kind Kind) []Action {
	var out []Action
	d.Walk(func(a Action) bool {
		if a.Kind() == kind {
			out = append(out, a)
		}
		return true
	})
	return out
}

// Messages returns the text of every LogInfo action in order.
func (d *Description) Messages() []string {
	var out []string
	for _, a := range d.Find(KindLogInfo) {
		out = append(out, a.(*LogInfo).Message)
	}
	return out
}

// Includes returns every include action, generated or external.
func (d *Description) Includes() []*Include {
	var out []*Include
	for _, a := range d.Find(KindInclude) {
		out = append(out, a.(*Include))
	}
	return out
}

func envelope(a Action) (map[string]any, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal %s action", a.Kind())
	}
	out := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal %s action", a.Kind())
	}
	out["kind"] = a.Kind()
	return out, nil
}

func (as Actions) envelopes() ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(as))
	for _, a := range as {
		e, err := envelope(a)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (as Actions) MarshalJSON() ([]byte, error) {
	envs, err := as.envelopes()
	if err != nil {
		return nil, err
	}
	return json.Marshal(envs)
}

func (as Actions) MarshalYAML() (any, error) {
	return as.envelopes()
}
