package domain

import "go.trai.ch/zerr"

// Node is an ordered sequence of tasks with declared inputs (tag names
// consumed from other nodes, `#tag`) and outputs (local tag names this
// node declares). Nodes are grouped under an Agent and gated by zero or
// more Triggers.
type Node struct {
	Name  string
	Agent string

	Tasks []TaskInfo

	// Inputs are tag names this node requires (e.g. "#compiled").
	Inputs []string
	// Outputs are local tag names this node declares.
	Outputs []string

	// RequiredTokens names the tokens this node must acquire before
	// running.
	RequiredTokens []string

	Complete bool
}

// Agent is a named grouping of nodes intended to run together on one
// machine. Nodes within an agent run sequentially.
type Agent struct {
	Name  string
	Nodes []*Node
}

// Trigger gates a set of agents so they execute only when named on the
// command line.
type Trigger struct {
	Name       string
	AgentNames []string
}

// Report is a passive aggregation of named node outcomes.
type Report struct {
	Name      string
	NodeNames []string
}

// PipelineGraph owns the parsed structure of a CORE B script: an ordered
// list of Agents, the Triggers that gate them, and Reports. It resolves
// tag names to their declaring node.
type PipelineGraph struct {
	Agents   []*Agent
	Triggers []*Trigger
	Reports  []*Report

	nodesByName map[string]*Node
	// tagOwner maps a declared output tag name to the node that declares it.
	tagOwner map[string]*Node
}

// NewPipelineGraph builds the lookup indexes for agents already populated
// with their nodes. It must be called once after all agents/nodes are
// added and before any resolution method is used.
func NewPipelineGraph(agents []*Agent, triggers []*Trigger, reports []*Report) (*PipelineGraph, error) {
	g := &PipelineGraph{
		Agents:      agents,
		Triggers:    triggers,
		Reports:     reports,
		nodesByName: make(map[string]*Node),
		tagOwner:    make(map[string]*Node),
	}
	for _, agent := range agents {
		for _, node := range agent.Nodes {
			if _, exists := g.nodesByName[node.Name]; exists {
				return nil, zerr.With(zerr.New("duplicate node name"), "node", node.Name)
			}
			g.nodesByName[node.Name] = node
			for _, out := range node.Outputs {
				if owner, exists := g.tagOwner[out]; exists {
					return nil, zerr.With(zerr.With(zerr.New("duplicate tag owner"),
						"tag", out), "nodes", owner.Name+","+node.Name)
				}
				g.tagOwner[out] = node
			}
		}
	}
	return g, nil
}

// Node returns the node with the given name, or nil.
func (g *PipelineGraph) Node(name string) *Node {
	return g.nodesByName[name]
}

// TagOwner resolves a tag name to the node that declares it as an output.
func (g *PipelineGraph) TagOwner(tag string) (*Node, error) {
	node, ok := g.tagOwner[tag]
	if !ok {
		return nil, zerr.With(ErrTagNotFound, "tag", tag)
	}
	return node, nil
}

// ResolveTarget resolves a target name to its node set. A target name may
// name a single node, an agent (all of its nodes), or a trigger (all
// nodes of its agents).
func (g *PipelineGraph) ResolveTarget(name string) ([]*Node, error) {
	if node, ok := g.nodesByName[name]; ok {
		return []*Node{node}, nil
	}
	for _, agent := range g.Agents {
		if agent.Name == name {
			return agent.Nodes, nil
		}
	}
	for _, trigger := range g.Triggers {
		if trigger.Name == name {
			var nodes []*Node
			for _, agentName := range trigger.AgentNames {
				for _, agent := range g.Agents {
					if agent.Name == agentName {
						nodes = append(nodes, agent.Nodes...)
					}
				}
			}
			return nodes, nil
		}
	}
	return nil, zerr.With(ErrTargetNotFound, "target", name)
}

// gatedAgentNames returns the set of agent names referenced by at least
// one trigger. An agent outside this set runs unconditionally; an agent
// inside it runs only when its trigger is selected.
func (g *PipelineGraph) gatedAgentNames() map[string]bool {
	gated := make(map[string]bool)
	for _, trigger := range g.Triggers {
		for _, name := range trigger.AgentNames {
			gated[name] = true
		}
	}
	return gated
}

// SelectTriggers resolves the node set a CORE B run should include given
// the default (ungated) agents, plus any explicitly selected triggers,
// minus any explicitly skipped ones. skipAll drops every trigger-gated
// agent regardless of selected/skip.
func (g *PipelineGraph) SelectTriggers(selected, skip []string, skipAll bool) ([]*Node, error) {
	gated := g.gatedAgentNames()
	skipSet := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipSet[s] = true
	}

	include := make(map[string]bool)
	for _, agent := range g.Agents {
		if !gated[agent.Name] {
			include[agent.Name] = true
		}
	}

	if !skipAll {
		for _, name := range selected {
			trigger, err := g.trigger(name)
			if err != nil {
				return nil, err
			}
			if skipSet[name] {
				continue
			}
			for _, agentName := range trigger.AgentNames {
				include[agentName] = true
			}
		}
	}

	for name := range skipSet {
		if trigger, err := g.trigger(name); err == nil {
			for _, agentName := range trigger.AgentNames {
				delete(include, agentName)
			}
		}
	}

	var nodes []*Node
	for _, agent := range g.Agents {
		if include[agent.Name] {
			nodes = append(nodes, agent.Nodes...)
		}
	}
	return nodes, nil
}

func (g *PipelineGraph) trigger(name string) (*Trigger, error) {
	for _, t := range g.Triggers {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, zerr.With(ErrTargetNotFound, "target", name)
}

// NodeDependencies returns the nodes that own the tags this node consumes
// as inputs.
func (g *PipelineGraph) NodeDependencies(node *Node) ([]*Node, error) {
	seen := make(map[string]bool)
	var deps []*Node
	for _, tag := range node.Inputs {
		owner, err := g.TagOwner(tag)
		if err != nil {
			return nil, zerr.With(err, "node", node.Name)
		}
		if owner == node || seen[owner.Name] {
			continue
		}
		seen[owner.Name] = true
		deps = append(deps, owner)
	}
	return deps, nil
}

// Cull computes the transitive closure of prerequisite nodes for the
// given target node set via a 3-color DFS, detecting cycles along the way.
func (g *PipelineGraph) Cull(targets []*Node) ([]*Node, error) {
	var order []*Node

	state := make(map[string]int) // 0 unvisited, 1 in-progress, 2 done
	var visit func(n *Node, stack []string) error
	visit = func(n *Node, stack []string) error {
		if state[n.Name] == 2 {
			return nil
		}
		if state[n.Name] == 1 {
			return zerr.With(ErrCycleDetected, "cycle", cycleString(append(stack, n.Name)))
		}
		state[n.Name] = 1
		path := append(append([]string{}, stack...), n.Name)
		deps, err := g.NodeDependencies(n)
		if err != nil {
			return err
		}
		for _, dep := range deps {
			if err := visit(dep, path); err != nil {
				return err
			}
		}
		state[n.Name] = 2
		order = append(order, n)
		return nil
	}

	for _, t := range targets {
		if err := visit(t, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func cycleString(stack []string) string {
	s := ""
	for i, n := range stack {
		if i > 0 {
			s += " -> "
		}
		s += n
	}
	return s
}
