package poll

import "time"

// Poll 定义了数据库中投票的数据结构
type Poll struct {
	ID          uint   `gorm:"primaryKey" json:"pollId"`
	Name        string `gorm:"type:varchar(200);not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	// Version 是乐观并发使用的行版本。
	// 修改投票结构（标题、候选项）或删除投票时都会校验并加一；追加选票只校验不加一。
	Version uint `gorm:"not null;default:1" json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Candidates []Candidate `gorm:"foreignKey:PollID" json:"candidates,omitempty"`
	Ballots    []Ballot    `gorm:"foreignKey:PollID" json:"ballots,omitempty"`
}

// Candidate 是投票中的一个候选项
type Candidate struct {
	ID     uint   `gorm:"primaryKey" json:"candidateId"`
	PollID uint   `gorm:"index;not null" json:"pollId"`
	Label  string `gorm:"type:varchar(200);not null" json:"label"`

	// Position 记录候选项在表单中的提交顺序
	Position int `gorm:"not null;default:0" json:"position"`

	BallotCandidates []BallotCandidate `gorm:"foreignKey:CandidateID" json:"-"`
}

// Ballot 是一位投票者提交的一张选票
type Ballot struct {
	ID        uint      `gorm:"primaryKey" json:"ballotId"`
	PollID    uint      `gorm:"index;not null" json:"pollId"`
	Voter     string    `gorm:"type:varchar(100);not null" json:"voter"`
	CreatedAt time.Time `json:"createdAt"`

	BallotCandidates []BallotCandidate `gorm:"foreignKey:BallotID" json:"candidates,omitempty"`
}

// BallotCandidate 是选票和候选项之间的多对多关联
type BallotCandidate struct {
	BallotID    uint `gorm:"primaryKey;autoIncrement:false" json:"ballotId"`
	CandidateID uint `gorm:"primaryKey;autoIncrement:false;index" json:"candidateId"`
}

// PollSummary 是列表页使用的投票摘要
type PollSummary struct {
	PollID         uint   `json:"pollId"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	CandidateCount int64  `json:"candidateCount"`
	BallotCount    int64  `json:"ballotCount"`
}
