package poll

import "time"

// --- 表单 ---
// 表单既用于接收请求体，也用于在校验失败时原样回显给前端

// CandidateForm 是表单中的一行候选项，CandidateID为0表示新增
type CandidateForm struct {
	CandidateID uint   `json:"candidateId"`
	Label       string `json:"label" validate:"nonblank,max=200"`
}

// PollForm 是创建和编辑投票共用的表单
type PollForm struct {
	PollID      uint            `json:"pollId"`
	Name        string          `json:"name" validate:"nonblank,max=200"`
	Description string          `json:"description" validate:"max=2000"`
	Version     uint            `json:"version,omitempty"`
	Candidates  []CandidateForm `json:"candidates" validate:"min=1,dive"`
}

// BallotForm 是投票表单
type BallotForm struct {
	PollID     uint   `json:"pollId"`
	Voter      string `json:"voter" validate:"nonblank,max=100"`
	Version    uint   `json:"version,omitempty"`
	Candidates []uint `json:"candidates" validate:"min=1,unique"`
}

// --- 视图 ---

// PollHeader 是投票的标题信息和候选项列表
type PollHeader struct {
	PollID      uint            `json:"pollId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Version     uint            `json:"version"`
	Candidates  []CandidateForm `json:"candidates"`
}

// VoteFormView 是投票页面需要的数据
type VoteFormView struct {
	Poll   PollHeader `json:"poll"`
	Ballot BallotForm `json:"ballot"`
}

// CandidateResult 是详情页中的候选项及其得票数
type CandidateResult struct {
	CandidateID uint   `json:"candidateId"`
	Label       string `json:"label"`
	Votes       int    `json:"votes"`
}

// BallotView 是详情页中的一张选票
type BallotView struct {
	BallotID     uint      `json:"ballotId"`
	Voter        string    `json:"voter"`
	CandidateIDs []uint    `json:"candidateIds"`
	Labels       []string  `json:"labels"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PollDetail 是详情页的数据
type PollDetail struct {
	PollID      uint              `json:"pollId"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Version     uint              `json:"version"`
	Candidates  []CandidateResult `json:"candidates"`
	Ballots     []BallotView      `json:"ballots"`
}

// DeleteConfirmation 是删除确认页的数据
type DeleteConfirmation struct {
	Poll           PollHeader `json:"poll"`
	CandidateCount int        `json:"candidateCount"`
	BallotCount    int        `json:"ballotCount"`
}

// --- 模型到视图的转换 ---

func headerOf(p *Poll) PollHeader {
	candidates := make([]CandidateForm, 0, len(p.Candidates))
	for _, c := range p.Candidates {
		candidates = append(candidates, CandidateForm{CandidateID: c.ID, Label: c.Label})
	}
	return PollHeader{
		PollID:      p.ID,
		Name:        p.Name,
		Description: p.Description,
		Version:     p.Version,
		Candidates:  candidates,
	}
}

func formOf(p *Poll) PollForm {
	h := headerOf(p)
	return PollForm{
		PollID:      h.PollID,
		Name:        h.Name,
		Description: h.Description,
		Version:     h.Version,
		Candidates:  h.Candidates,
	}
}

func detailOf(p *Poll) PollDetail {
	votes := make(map[uint]int, len(p.Candidates))
	labels := make(map[uint]string, len(p.Candidates))
	for _, c := range p.Candidates {
		labels[c.ID] = c.Label
	}

	ballots := make([]BallotView, 0, len(p.Ballots))
	for _, b := range p.Ballots {
		view := BallotView{
			BallotID:     b.ID,
			Voter:        b.Voter,
			CandidateIDs: make([]uint, 0, len(b.BallotCandidates)),
			Labels:       make([]string, 0, len(b.BallotCandidates)),
			CreatedAt:    b.CreatedAt,
		}
		for _, link := range b.BallotCandidates {
			view.CandidateIDs = append(view.CandidateIDs, link.CandidateID)
			view.Labels = append(view.Labels, labels[link.CandidateID])
			votes[link.CandidateID]++
		}
		ballots = append(ballots, view)
	}

	candidates := make([]CandidateResult, 0, len(p.Candidates))
	for _, c := range p.Candidates {
		candidates = append(candidates, CandidateResult{CandidateID: c.ID, Label: c.Label, Votes: votes[c.ID]})
	}

	return PollDetail{
		PollID:      p.ID,
		Name:        p.Name,
		Description: p.Description,
		Version:     p.Version,
		Candidates:  candidates,
		Ballots:     ballots,
	}
}
