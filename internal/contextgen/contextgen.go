// Package contextgen builds the context brief handed to an agent at
// startup: its registry-declared capabilities, the subtasks waiting on it,
// any unread messages, and its current capacity zone, assembled from a
// per-role section template and trimmed to a token budget so the brief
// never itself exhausts the context it is meant to protect.
package contextgen

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agentmemory/backend/internal/store"
)

// charsPerToken approximates English prose token density; good enough for
// a budget guard, not for billing.
const charsPerToken = 3.5

// defaultTokenBudget is used when a caller doesn't specify one.
const defaultTokenBudget = 2000

// Generator is the Context Brief component.
type Generator struct {
	registry store.RegistryStore
	subtasks store.SubtaskStore
	messages store.MessageStore
	capacity store.CapacityStore
}

// New constructs a Generator over the given stores.
func New(registry store.RegistryStore, subtasks store.SubtaskStore, messages store.MessageStore, capacity store.CapacityStore) *Generator {
	return &Generator{registry: registry, subtasks: subtasks, messages: messages, capacity: capacity}
}

// Section is one ordered block of the brief.
type Section struct {
	Name string
	Body string
}

// Source records one domain object consulted while building a brief, so a
// caller can audit exactly what informed it.
type Source struct {
	Type      string  `json:"type"`
	ID        string  `json:"id"`
	Relevance float64 `json:"relevance"`
	Summary   string  `json:"summary"`
}

// Brief is the assembled context handed to an agent.
type Brief struct {
	AgentType string
	AgentID   string
	Category  string
	Sections  []Section
	Sources   []Source
	Truncated bool
}

// String renders the brief as the flat text an agent's system prompt would
// embed, sections in template order separated by a blank line.
func (b *Brief) String() string {
	var sb strings.Builder
	for i, s := range b.Sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("## ")
		sb.WriteString(s.Name)
		sb.WriteString("\n")
		sb.WriteString(s.Body)
	}
	return sb.String()
}

// Category is one of the six roles a brief template is keyed on.
type Category string

const (
	CategoryOrchestrator Category = "orchestrator"
	CategoryDeveloper    Category = "developer"
	CategoryValidator    Category = "validator"
	CategorySpecialist   Category = "specialist"
	CategoryResearcher   Category = "researcher"
	CategoryWriter       Category = "writer"
)

// agentTypeCategory maps the agent_type strings seeded into the registry
// to one of the six brief categories. An agent_type absent from this map
// (or an empty one) classifies as developer.
var agentTypeCategory = map[string]Category{
	"planner":     CategoryOrchestrator,
	"coordinator": CategoryOrchestrator,
	"orchestrator": CategoryOrchestrator,
	"coder":       CategoryDeveloper,
	"developer":   CategoryDeveloper,
	"tester":      CategoryValidator,
	"reviewer":    CategoryValidator,
	"validator":   CategoryValidator,
	"researcher":  CategoryResearcher,
	"analyst":     CategoryResearcher,
	"writer":      CategoryWriter,
	"documenter":  CategoryWriter,
	"specialist":  CategorySpecialist,
}

// classify resolves an agent_type to its brief category, defaulting
// unrecognized or empty types to developer.
func classify(agentType string) Category {
	if c, ok := agentTypeCategory[strings.ToLower(agentType)]; ok {
		return c
	}
	return CategoryDeveloper
}

// sectionSpec is one entry of a category's ordered template: a section
// name and the number of characters its own content may use before it is
// truncated.
type sectionSpec struct {
	name    string
	charCap int
}

// categoryTemplates gives each category its own section order and
// per-section char caps, so an orchestrator sees assigned work before its
// own capabilities while a writer sees messages before task detail. Caps
// are generous defaults; the overall Generate budget still applies on top.
var categoryTemplates = map[Category][]sectionSpec{
	CategoryOrchestrator: {
		{"assigned_work", 3000},
		{"capabilities", 1200},
		{"messages", 1500},
		{"capacity", 400},
	},
	CategoryDeveloper: {
		{"capabilities", 1500},
		{"assigned_work", 2500},
		{"messages", 1000},
		{"capacity", 400},
	},
	CategoryValidator: {
		{"assigned_work", 2500},
		{"messages", 1500},
		{"capabilities", 1000},
		{"capacity", 400},
	},
	CategorySpecialist: {
		{"capabilities", 2000},
		{"assigned_work", 2000},
		{"capacity", 600},
		{"messages", 800},
	},
	CategoryResearcher: {
		{"assigned_work", 2000},
		{"capabilities", 1000},
		{"messages", 1500},
		{"capacity", 400},
	},
	CategoryWriter: {
		{"capabilities", 1200},
		{"messages", 1500},
		{"assigned_work", 2000},
		{"capacity", 400},
	},
}

// Generate assembles the brief for agentType/agentID against current
// store state, following the section template for agentType's category
// and trimming the lowest-priority (last) sections first when the overall
// token budget would otherwise be exceeded.
func (g *Generator) Generate(ctx context.Context, agentType, agentID string, tokenBudget int) (*Brief, error) {
	if tokenBudget <= 0 {
		tokenBudget = defaultTokenBudget
	}
	charBudget := int(float64(tokenBudget) * charsPerToken)
	category := classify(agentType)

	var sources []Source
	sections := make(map[string]string, 4)

	if agentType != "" {
		entry, err := g.registry.Get(ctx, agentType)
		switch {
		case err == store.ErrNotFound:
			sections["capabilities"] = fmt.Sprintf("no registry entry for agent type %q; defaults apply", agentType)
		case err != nil:
			return nil, fmt.Errorf("load registry entry: %w", err)
		default:
			sections["capabilities"] = renderCapabilities(entry)
			sources = append(sources, Source{Type: "registry", ID: entry.AgentType, Relevance: 1.0, Summary: "declared capabilities for " + entry.AgentType})
		}
	} else {
		sections["capabilities"] = "no agent type supplied; defaults apply"
	}

	if agentID != "" {
		assigned, err := g.subtasks.Search(ctx, "", agentID,
			[]string{store.SubtaskStatusRunning, store.SubtaskStatusBlocked, store.SubtaskStatusPaused},
			store.PageOpts{Limit: 20}.Normalize(20, 100))
		if err != nil {
			return nil, fmt.Errorf("load assigned subtasks: %w", err)
		}
		sections["assigned_work"] = renderSubtasks(assigned)
		for _, s := range assigned {
			sources = append(sources, Source{
				Type:      "task",
				ID:        s.ID.String(),
				Relevance: subtaskRelevance(s),
				Summary:   s.Description,
			})
		}

		pending, err := g.messages.Pending(ctx, agentID, "", store.PageOpts{Limit: 20}.Normalize(20, 100))
		if err != nil {
			return nil, fmt.Errorf("load pending messages: %w", err)
		}
		sections["messages"] = renderMessages(pending)
		for _, m := range pending {
			sources = append(sources, Source{
				Type:      "message",
				ID:        m.ID.String(),
				Relevance: messageRelevance(m),
				Summary:   messageSummary(m),
			})
		}

		cap, err := g.capacity.Get(ctx, agentID)
		switch {
		case err == store.ErrNotFound:
			sections["capacity"] = "no capacity data recorded yet"
		case err != nil:
			return nil, fmt.Errorf("load capacity: %w", err)
		default:
			sections["capacity"] = renderCapacity(cap)
			sources = append(sources, Source{Type: "capacity", ID: agentID, Relevance: 1.0, Summary: fmt.Sprintf("%s zone, usage %d", cap.Zone, cap.CurrentUsage)})
		}
	} else {
		sections["assigned_work"] = "(no agent id supplied; assigned work omitted)"
		sections["messages"] = "(no agent id supplied; messages omitted)"
		sections["capacity"] = "(no agent id supplied; capacity omitted)"
	}

	brief := &Brief{AgentType: agentType, AgentID: agentID, Category: string(category), Sources: sources}
	used := 0
	for _, spec := range categoryTemplates[category] {
		body := sections[spec.name]
		if len(body) > spec.charCap {
			brief.Truncated = true
			body = body[:spec.charCap] + "\n...(truncated)"
		}
		if used+len(body) > charBudget {
			brief.Truncated = true
			remaining := charBudget - used
			if remaining <= 0 {
				continue
			}
			body = body[:remaining] + "\n...(truncated)"
		}
		brief.Sections = append(brief.Sections, Section{Name: spec.name, Body: body})
		used += len(body)
	}

	return brief, nil
}

// subtaskRelevance scores a subtask's priority (0-9) into [0,1], with a
// floor so unprioritized work still surfaces as moderately relevant.
func subtaskRelevance(s *store.SubtaskData) float64 {
	if s.Priority <= 0 {
		return 0.5
	}
	r := float64(s.Priority) / 9.0
	if r > 1 {
		r = 1
	}
	return r
}

func messageRelevance(m *store.MessageData) float64 {
	if m.Priority <= 0 {
		return 0.5
	}
	r := float64(m.Priority) / 9.0
	if r > 1 {
		r = 1
	}
	return r
}

func messageSummary(m *store.MessageData) string {
	payload := string(m.Payload)
	if len(payload) > 120 {
		payload = payload[:120] + "..."
	}
	return fmt.Sprintf("from %s [%s/%s]: %s", m.FromAgent, m.Topic, m.Kind, payload)
}

func renderCapabilities(e *store.AgentRegistryEntryData) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "category: %s\n", e.Category)
	if e.MaxFiles > 0 {
		fmt.Fprintf(&sb, "max files: %d\n", e.MaxFiles)
	}
	if len(e.AllowedTools) > 0 {
		tools := append([]string(nil), e.AllowedTools...)
		sort.Strings(tools)
		fmt.Fprintf(&sb, "allowed tools: %s\n", strings.Join(tools, ", "))
	}
	if len(e.ForbiddenActions) > 0 {
		actions := append([]string(nil), e.ForbiddenActions...)
		sort.Strings(actions)
		fmt.Fprintf(&sb, "forbidden actions: %s\n", strings.Join(actions, ", "))
	}
	if e.RecommendedModel != "" {
		fmt.Fprintf(&sb, "recommended model: %s\n", e.RecommendedModel)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderSubtasks(subtasks []*store.SubtaskData) string {
	if len(subtasks) == 0 {
		return "none assigned"
	}
	sorted := append([]*store.SubtaskData(nil), subtasks...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	var sb strings.Builder
	for _, s := range sorted {
		fmt.Fprintf(&sb, "- [%s] %s (status %s, priority %d)\n", s.ID, s.Description, s.Status, s.Priority)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderMessages(msgs []*store.MessageData) string {
	if len(msgs) == 0 {
		return "none pending"
	}
	var sb strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&sb, "- from %s [%s/%s]: %s\n", m.FromAgent, m.Topic, m.Kind, string(m.Payload))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderCapacity(c *store.AgentCapacityData) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "zone: %s\n", c.Zone)
	fmt.Fprintf(&sb, "current usage: %d\n", c.CurrentUsage)
	fmt.Fprintf(&sb, "consumption rate: %.2f/min\n", c.ConsumptionRate)
	if c.PredictedExhaustMins != nil {
		fmt.Fprintf(&sb, "predicted exhaustion: %.1f minutes\n", *c.PredictedExhaustMins)
	}
	return strings.TrimRight(sb.String(), "\n")
}
