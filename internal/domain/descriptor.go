package domain

// TypeDescriptor carries static presentation metadata for one nudge type.
type TypeDescriptor struct {
	Type     NudgeType
	IDPrefix string
	Label    string
	Icon     string
	// Color is an ANSI 256 palette index.
	Color string
}

// PriorityDescriptor carries static ranking and presentation metadata for one priority.
type PriorityDescriptor struct {
	Priority Priority
	Rank     int
	Label    string
	Color    string
}

var typeDescriptors = [...]TypeDescriptor{
	{Type: NudgeTypeStaleLead, IDPrefix: "stale-lead", Label: "Stale lead", Icon: "◷", Color: "214"},
	{Type: NudgeTypeDealStalled, IDPrefix: "deal-stalled", Label: "Deal stalled", Icon: "◌", Color: "179"},
	{Type: NudgeTypeActionOverdue, IDPrefix: "action-overdue", Label: "Action overdue", Icon: "!", Color: "203"},
	{Type: NudgeTypeActionDueSoon, IDPrefix: "action-due-soon", Label: "Action due soon", Icon: "→", Color: "75"},
	{Type: NudgeTypeCapturePending, IDPrefix: "capture-pending", Label: "Captures pending", Icon: "✚", Color: "141"},
}

var priorityDescriptors = [...]PriorityDescriptor{
	{Priority: PriorityHigh, Rank: 0, Label: "High", Color: "203"},
	{Priority: PriorityMedium, Rank: 1, Label: "Medium", Color: "214"},
	{Priority: PriorityLow, Rank: 2, Label: "Low", Color: "244"},
}

// Descriptor returns the static descriptor for one nudge type.
// Unknown types get a neutral descriptor whose prefix is the raw type.
func Descriptor(nudgeType NudgeType) TypeDescriptor {
	nudgeType = NormalizeNudgeType(nudgeType)
	for _, d := range typeDescriptors {
		if d.Type == nudgeType {
			return d
		}
	}
	return TypeDescriptor{Type: nudgeType, IDPrefix: string(nudgeType), Label: string(nudgeType), Icon: "•", Color: "244"}
}

// DescribePriority returns the static descriptor for one priority.
// Unknown priorities rank after every known bucket.
func DescribePriority(priority Priority) PriorityDescriptor {
	priority = NormalizePriority(priority)
	for _, d := range priorityDescriptors {
		if d.Priority == priority {
			return d
		}
	}
	return PriorityDescriptor{Priority: priority, Rank: len(priorityDescriptors), Label: string(priority), Color: "244"}
}

// TypeDescriptors returns all nudge-type descriptors in declaration order.
func TypeDescriptors() []TypeDescriptor {
	return append([]TypeDescriptor(nil), typeDescriptors[:]...)
}
