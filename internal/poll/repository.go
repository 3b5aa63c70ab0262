package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SlpAus/tinyballot-backend/internal/platform/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SaveStatus 是一次带版本校验的写操作的结果
type SaveStatus int

const (
	SaveOK SaveStatus = iota
	// SaveConflict 表示投票仍然存在，但版本已经变化
	SaveConflict
	// SaveNotFound 表示投票在读取之后被删除了
	SaveNotFound
)

func (s SaveStatus) String() string {
	switch s {
	case SaveOK:
		return "ok"
	case SaveConflict:
		return "conflict"
	case SaveNotFound:
		return "not_found"
	default:
		return fmt.Sprintf("SaveStatus(%d)", int(s))
	}
}

// errRollback 用于在版本校验失败时回滚事务，不会返回给调用方
var errRollback = errors.New("rollback")

// LoadOptions 决定读取投票时需要一并加载哪些关联数据
type LoadOptions struct {
	Candidates bool
	Ballots    bool
	// CandidateLinks 加载每张选票所选的候选项，需要同时设置 Ballots
	CandidateLinks bool
}

// PollEdit 是一次编辑需要写入的全部内容
type PollEdit struct {
	PollID          uint
	ExpectedVersion uint
	Name            string
	Description     string
	Plan            CandidatePlan
}

// Repository 负责投票数据图（投票、候选项、选票、选票关联）的持久化
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewRepository 创建仓库，logger为nil时使用slog默认logger
func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

// ListSummaries 返回所有投票及其候选项数和选票数，按ID升序
func (r *Repository) ListSummaries(ctx context.Context) ([]PollSummary, error) {
	var out []PollSummary
	err := r.db.WithContext(ctx).
		Model(&Poll{}).
		Select(`polls.id AS poll_id, polls.name AS name, polls.description AS description,
			(SELECT COUNT(*) FROM candidates WHERE candidates.poll_id = polls.id) AS candidate_count,
			(SELECT COUNT(*) FROM ballots WHERE ballots.poll_id = polls.id) AS ballot_count`).
		Order("polls.id ASC").
		Scan(&out).Error
	if err != nil {
		r.logError(ctx, "poll_list_failed", err)
		return nil, fmt.Errorf("无法读取投票列表: %w", err)
	}
	if out == nil {
		out = []PollSummary{}
	}
	return out, nil
}

// FindPoll 读取一个投票，按需加载关联数据。投票不存在时返回 ErrPollNotFound。
func (r *Repository) FindPoll(ctx context.Context, pollID uint, opts LoadOptions) (*Poll, error) {
	q := r.db.WithContext(ctx)
	if opts.Candidates {
		q = q.Preload("Candidates", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		})
	}
	if opts.Ballots {
		q = q.Preload("Ballots", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		})
		if opts.CandidateLinks {
			q = q.Preload("Ballots.BallotCandidates", func(db *gorm.DB) *gorm.DB {
				return db.Order("candidate_id ASC")
			})
		}
	}

	var p Poll
	if err := q.First(&p, pollID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPollNotFound
		}
		r.logError(ctx, "poll_load_failed", err, "poll_id", pollID)
		return nil, fmt.Errorf("无法读取投票 %d: %w", pollID, err)
	}
	return &p, nil
}

// CreatePoll 在一个事务中写入投票及其候选项
func (r *Repository) CreatePoll(ctx context.Context, p *Poll) error {
	p.Version = 1
	for i := range p.Candidates {
		p.Candidates[i].Position = i
	}
	if err := r.db.WithContext(ctx).Omit("Ballots").Create(p).Error; err != nil {
		r.logError(ctx, "poll_create_failed", err)
		return fmt.Errorf("无法创建投票: %w", err)
	}
	return nil
}

// AppendBallot 为投票追加一张选票及其候选项关联。
// 只校验版本，不增加版本号，因此并发投票之间不会互相冲突。
func (r *Repository) AppendBallot(ctx context.Context, pollID, expectedVersion uint, ballot *Ballot) (SaveStatus, error) {
	return r.saveGraph(ctx, pollID, expectedVersion, false, func(tx *gorm.DB) error {
		ballot.PollID = pollID
		links := ballot.BallotCandidates
		if err := tx.Omit(clause.Associations).Create(ballot).Error; err != nil {
			return fmt.Errorf("无法写入选票: %w", err)
		}
		for i := range links {
			links[i].BallotID = ballot.ID
		}
		if len(links) > 0 {
			if err := tx.Create(&links).Error; err != nil {
				return fmt.Errorf("无法写入选票关联: %w", err)
			}
		}
		ballot.BallotCandidates = links
		return nil
	})
}

// ApplyEdit 更新投票标题并按计划写入候选项的变化
func (r *Repository) ApplyEdit(ctx context.Context, edit PollEdit) (SaveStatus, error) {
	return r.saveGraph(ctx, edit.PollID, edit.ExpectedVersion, true, func(tx *gorm.DB) error {
		// 1. 标题和描述
		if err := tx.Model(&Poll{}).Where("id = ?", edit.PollID).
			Updates(map[string]any{"name": edit.Name, "description": edit.Description}).Error; err != nil {
			return fmt.Errorf("无法更新投票: %w", err)
		}
		if edit.Plan.Empty() {
			return nil
		}

		// 2. 删除没有被重新提交的候选项，先删关联再删候选项
		if len(edit.Plan.Remove) > 0 {
			if err := tx.Where("candidate_id IN ?", edit.Plan.Remove).Delete(&BallotCandidate{}).Error; err != nil {
				return fmt.Errorf("无法删除候选项的选票关联: %w", err)
			}
			if err := tx.Where("poll_id = ? AND id IN ?", edit.PollID, edit.Plan.Remove).Delete(&Candidate{}).Error; err != nil {
				return fmt.Errorf("无法删除候选项: %w", err)
			}
		}

		// 3. 原地更新保留的候选项
		for _, c := range edit.Plan.Update {
			res := tx.Model(&Candidate{}).Where("id = ? AND poll_id = ?", c.ID, edit.PollID).
				Updates(map[string]any{"label": c.Label, "position": c.Position})
			if res.Error != nil {
				return fmt.Errorf("无法更新候选项 %d: %w", c.ID, res.Error)
			}
		}

		// 4. 插入新的候选项
		if len(edit.Plan.Insert) > 0 {
			inserts := make([]Candidate, len(edit.Plan.Insert))
			for i, c := range edit.Plan.Insert {
				inserts[i] = Candidate{PollID: edit.PollID, Label: c.Label, Position: c.Position}
			}
			if err := tx.Omit(clause.Associations).Create(&inserts).Error; err != nil {
				return fmt.Errorf("无法插入候选项: %w", err)
			}
		}
		return nil
	})
}

// DeletePollGraph 按 选票关联 -> 选票 -> 候选项 -> 投票 的顺序删除整个投票
func (r *Repository) DeletePollGraph(ctx context.Context, pollID, expectedVersion uint) (SaveStatus, error) {
	return r.saveGraph(ctx, pollID, expectedVersion, true, func(tx *gorm.DB) error {
		var ballotIDs []uint
		if err := tx.Model(&Ballot{}).Where("poll_id = ?", pollID).Pluck("id", &ballotIDs).Error; err != nil {
			return fmt.Errorf("无法读取选票ID: %w", err)
		}
		var candidateIDs []uint
		if err := tx.Model(&Candidate{}).Where("poll_id = ?", pollID).Pluck("id", &candidateIDs).Error; err != nil {
			return fmt.Errorf("无法读取候选项ID: %w", err)
		}

		if len(ballotIDs) > 0 {
			if err := tx.Where("ballot_id IN ?", ballotIDs).Delete(&BallotCandidate{}).Error; err != nil {
				return fmt.Errorf("无法删除选票关联: %w", err)
			}
		}
		if len(candidateIDs) > 0 {
			// 防止其他投票的选票指向这里的候选项
			if err := tx.Where("candidate_id IN ?", candidateIDs).Delete(&BallotCandidate{}).Error; err != nil {
				return fmt.Errorf("无法删除候选项关联: %w", err)
			}
		}
		if err := tx.Where("poll_id = ?", pollID).Delete(&Ballot{}).Error; err != nil {
			return fmt.Errorf("无法删除选票: %w", err)
		}
		if err := tx.Where("poll_id = ?", pollID).Delete(&Candidate{}).Error; err != nil {
			return fmt.Errorf("无法删除候选项: %w", err)
		}
		if err := tx.Where("id = ?", pollID).Delete(&Poll{}).Error; err != nil {
			return fmt.Errorf("无法删除投票: %w", err)
		}
		return nil
	})
}

// saveGraph 在事务中先校验投票版本，再执行写操作。
// 校验失败时通过 errRollback 回滚，并根据投票是否还存在返回 SaveNotFound 或 SaveConflict。
func (r *Repository) saveGraph(ctx context.Context, pollID, expectedVersion uint, bump bool, write func(tx *gorm.DB) error) (SaveStatus, error) {
	status := SaveOK
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"updated_at": time.Now()}
		if bump {
			updates["version"] = gorm.Expr("version + 1")
		}
		res := tx.Model(&Poll{}).Where("id = ? AND version = ?", pollID, expectedVersion).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("无法校验投票版本: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&Poll{}).Where("id = ?", pollID).Count(&count).Error; err != nil {
				return fmt.Errorf("无法确认投票是否存在: %w", err)
			}
			if count == 0 {
				status = SaveNotFound
			} else {
				status = SaveConflict
			}
			return errRollback
		}
		return write(tx)
	})

	switch {
	case err == nil:
		return SaveOK, nil
	case errors.Is(err, errRollback):
		return status, nil
	case database.IsRetryableError(err):
		// 并发事务之间的锁冲突和版本冲突一样，交给调用方重新加载
		return SaveConflict, nil
	default:
		r.logError(ctx, "poll_save_failed", err, "poll_id", pollID)
		return status, err
	}
}

func (r *Repository) logError(ctx context.Context, event string, err error, attrs ...any) {
	args := append([]any{
		"event", event,
		"module", "poll",
		"layer", "repository",
		"error", err.Error(),
	}, attrs...)
	r.logger.ErrorContext(ctx, "poll repository error", args...)
}
