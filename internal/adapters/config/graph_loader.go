package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"go.forgebuild.dev/forge/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// GraphFileLoader implements ports.PipelineGraphLoader using a YAML graph
// script: the same declarative-surface substitute the teacher's Bobfile
// loader reads for CORE A, generalized to agents of nodes instead of a
// flat task map.
type GraphFileLoader struct{}

// NewGraphFileLoader creates a GraphFileLoader.
func NewGraphFileLoader() *GraphFileLoader {
	return &GraphFileLoader{}
}

type graphScript struct {
	Version    string              `yaml:"version"`
	Properties map[string]string   `yaml:"properties"`
	Agents     map[string]agentDTO `yaml:"agents"`
	Triggers   map[string][]string `yaml:"triggers"`
	Reports    map[string][]string `yaml:"reports"`
}

type agentDTO struct {
	Nodes map[string]nodeDTO `yaml:"nodes"`
}

type nodeDTO struct {
	Tasks          []taskDTO `yaml:"tasks"`
	Inputs         []string  `yaml:"inputs"`
	Outputs        []string  `yaml:"outputs"`
	RequiredTokens []string  `yaml:"requiredTokens"`
}

type taskDTO struct {
	Type       string            `yaml:"type"`
	Parameters map[string]string `yaml:"parameters"`
	Condition  string            `yaml:"condition"`
}

// Load parses the graph script at path, substituting "${name}" property
// references in every task parameter value with the script's declared
// properties overridden by the caller-supplied properties, then builds
// the resulting PipelineGraph.
func (l *GraphFileLoader) Load(path string, properties map[string]string) (*domain.PipelineGraph, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a caller-supplied script location
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read graph script"), "path", path)
	}

	var script graphScript
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse graph script"), "path", path)
	}

	merged := make(map[string]string, len(script.Properties)+len(properties))
	for k, v := range script.Properties {
		merged[k] = v
	}
	for k, v := range properties {
		merged[k] = v
	}

	agentNames := make([]string, 0, len(script.Agents))
	for name := range script.Agents {
		agentNames = append(agentNames, name)
	}
	sort.Strings(agentNames)

	var agents []*domain.Agent
	for _, agentName := range agentNames {
		dto := script.Agents[agentName]
		agent := &domain.Agent{Name: agentName}

		nodeNames := make([]string, 0, len(dto.Nodes))
		for name := range dto.Nodes {
			nodeNames = append(nodeNames, name)
		}
		sort.Strings(nodeNames)

		for _, nodeName := range nodeNames {
			nd := dto.Nodes[nodeName]
			tasks := make([]domain.TaskInfo, 0, len(nd.Tasks))
			for i, t := range nd.Tasks {
				params := make(map[string]cty.Value, len(t.Parameters))
				for k, v := range t.Parameters {
					params[k] = cty.StringVal(substituteProperties(v, merged))
				}
				tasks = append(tasks, domain.TaskInfo{
					TaskType:   t.Type,
					Parameters: params,
					Condition:  substituteProperties(t.Condition, merged),
					Line:       i + 1,
				})
			}
			agent.Nodes = append(agent.Nodes, &domain.Node{
				Name:           nodeName,
				Agent:          agentName,
				Tasks:          tasks,
				Inputs:         nd.Inputs,
				Outputs:        nd.Outputs,
				RequiredTokens: nd.RequiredTokens,
			})
		}
		agents = append(agents, agent)
	}

	triggerNames := make([]string, 0, len(script.Triggers))
	for name := range script.Triggers {
		triggerNames = append(triggerNames, name)
	}
	sort.Strings(triggerNames)
	var triggers []*domain.Trigger
	for _, name := range triggerNames {
		triggers = append(triggers, &domain.Trigger{Name: name, AgentNames: script.Triggers[name]})
	}

	reportNames := make([]string, 0, len(script.Reports))
	for name := range script.Reports {
		reportNames = append(reportNames, name)
	}
	sort.Strings(reportNames)
	var reports []*domain.Report
	for _, name := range reportNames {
		reports = append(reports, &domain.Report{Name: name, NodeNames: script.Reports[name]})
	}

	return domain.NewPipelineGraph(agents, triggers, reports)
}

// substituteProperties replaces every "${name}" occurrence in s with
// properties[name], leaving unrecognized references untouched.
func substituteProperties(s string, properties map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	for name, value := range properties {
		s = strings.ReplaceAll(s, fmt.Sprintf("${%s}", name), value)
	}
	return s
}
