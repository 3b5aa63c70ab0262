package poll

// CandidatePlan 描述编辑投票时需要对候选项执行的写操作
type CandidatePlan struct {
	// Update 是保留下来且标签或顺序有变化的候选项
	Update []Candidate
	// Insert 是新增的候选项，ID为0
	Insert []Candidate
	// Remove 是没有被重新提交的候选项ID，它们的选票关联也会被删除
	Remove []uint
}

// Empty 表示候选项没有任何变化
func (p CandidatePlan) Empty() bool {
	return len(p.Update) == 0 && len(p.Insert) == 0 && len(p.Remove) == 0
}

// planCandidateEdit 对比已有候选项和提交的候选项：
// ID匹配的原地更新标签，没有匹配的作为新候选项插入，没有被提交的删除。
// 提交顺序即新的 Position。
func planCandidateEdit(existing []Candidate, submitted []CandidateForm) CandidatePlan {
	byID := make(map[uint]Candidate, len(existing))
	for _, c := range existing {
		byID[c.ID] = c
	}

	var plan CandidatePlan
	kept := make(map[uint]bool, len(submitted))
	for i, form := range submitted {
		current, ok := byID[form.CandidateID]
		if form.CandidateID == 0 || !ok || kept[form.CandidateID] {
			plan.Insert = append(plan.Insert, Candidate{Label: form.Label, Position: i})
			continue
		}
		kept[form.CandidateID] = true
		if current.Label == form.Label && current.Position == i {
			continue
		}
		current.Label = form.Label
		current.Position = i
		current.BallotCandidates = nil
		plan.Update = append(plan.Update, current)
	}

	for _, c := range existing {
		if !kept[c.ID] {
			plan.Remove = append(plan.Remove, c.ID)
		}
	}
	return plan
}
