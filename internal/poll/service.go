package poll

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/SlpAus/tinyballot-backend/internal/platform/events"
	"github.com/SlpAus/tinyballot-backend/internal/platform/metrics"
	"github.com/go-playground/validator/v10"
)

// afterCommitTimeout 限制提交后的缓存失效和事件发布所占用的时间
const afterCommitTimeout = 5 * time.Second

// Options 是 Service 的可选依赖，零值表示不启用对应功能
type Options struct {
	Cache     SummaryCache
	Publisher events.Publisher
	Metrics   *metrics.PollMetrics
	Logger    *slog.Logger
}

// Service 实现投票的全部用例。它无状态，可以被多个请求并发使用。
type Service struct {
	repo      *Repository
	cache     SummaryCache
	publisher events.Publisher
	metrics   *metrics.PollMetrics
	logger    *slog.Logger
	validate  *validator.Validate
}

// NewService 创建投票服务
func NewService(repo *Repository, opts Options) *Service {
	s := &Service{
		repo:      repo,
		cache:     opts.Cache,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		validate:  newValidator(),
	}
	if s.cache == nil {
		s.cache = NopSummaryCache{}
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// List 返回所有投票的摘要，优先读取缓存
func (s *Service) List(ctx context.Context) (summaries []PollSummary, err error) {
	defer s.observe("list", time.Now(), &err)

	cached, generation, ok := s.cache.Load(ctx)
	if ok {
		return cached, nil
	}
	summaries, err = s.repo.ListSummaries(ctx)
	if err != nil {
		return nil, err
	}
	// 查询期间若有写入提交，代数已变化，Store 会放弃写回
	s.cache.Store(ctx, generation, summaries)
	return summaries, nil
}

// GetDetails 返回投票、候选项得票数以及每张选票的内容
func (s *Service) GetDetails(ctx context.Context, pollID uint) (detail *PollDetail, err error) {
	defer s.observe("details", time.Now(), &err)

	p, err := s.repo.FindPoll(ctx, pollID, LoadOptions{Candidates: true, Ballots: true, CandidateLinks: true})
	if err != nil {
		return nil, err
	}
	d := detailOf(p)
	return &d, nil
}

// NewPollForm 返回创建页面的空表单，带一个空的候选项行
func (s *Service) NewPollForm() PollForm {
	return PollForm{Candidates: []CandidateForm{NewCandidateRow()}}
}

// NewCandidateRow 返回一个空的候选项行，客户端用它向表单追加候选项
func NewCandidateRow() CandidateForm {
	return CandidateForm{}
}

// Create 校验表单并创建投票。校验失败时返回 *ValidationError。
func (s *Service) Create(ctx context.Context, form PollForm) (created *Poll, err error) {
	defer s.observe("create", time.Now(), &err)

	form = normalizePollForm(form)
	if err := validatePollForm(s.validate, form, false); err != nil {
		return nil, err
	}

	p := &Poll{Name: form.Name, Description: form.Description}
	for _, c := range form.Candidates {
		p.Candidates = append(p.Candidates, Candidate{Label: c.Label})
	}
	if err := s.repo.CreatePoll(ctx, p); err != nil {
		return nil, err
	}

	s.afterCommit(ctx, events.Event{Type: events.TypePollCreated, PollID: p.ID})
	return p, nil
}

// GetVoteForm 返回投票页面：投票标题、候选项和一张空选票
func (s *Service) GetVoteForm(ctx context.Context, pollID uint) (*VoteFormView, error) {
	p, err := s.repo.FindPoll(ctx, pollID, LoadOptions{Candidates: true})
	if err != nil {
		return nil, err
	}
	return &VoteFormView{
		Poll:   headerOf(p),
		Ballot: BallotForm{PollID: p.ID, Version: p.Version, Candidates: []uint{}},
	}, nil
}

// RedisplayVoteForm 在选票校验失败后重新加载投票，并回显提交的选票
func (s *Service) RedisplayVoteForm(ctx context.Context, form BallotForm) (*VoteFormView, error) {
	view, err := s.GetVoteForm(ctx, form.PollID)
	if err != nil {
		return nil, err
	}
	if form.Candidates == nil {
		form.Candidates = []uint{}
	}
	view.Ballot = form
	return view, nil
}

// SubmitVote 为投票追加一张选票。
// voter为空时使用 fallbackVoter（通常是voter-id cookie）。
func (s *Service) SubmitVote(ctx context.Context, routeID uint, form BallotForm, fallbackVoter string) (ballot *Ballot, err error) {
	defer s.observe("vote", time.Now(), &err)

	// 1. 路由中的ID必须和表单中的一致
	if routeID != form.PollID {
		return nil, ErrPollNotFound
	}

	// 2. 加载投票和候选项
	p, err := s.repo.FindPoll(ctx, routeID, LoadOptions{Candidates: true})
	if err != nil {
		return nil, err
	}

	// 3. 校验选票
	form.Voter = strings.TrimSpace(form.Voter)
	if form.Voter == "" {
		form.Voter = strings.TrimSpace(fallbackVoter)
	}
	if err := validateBallotForm(s.validate, form, p.Candidates); err != nil {
		return nil, err
	}
	if form.Version != 0 && form.Version != p.Version {
		return nil, ErrConcurrencyConflict
	}

	// 4. 追加选票和关联
	ballot = &Ballot{Voter: form.Voter}
	for _, id := range form.Candidates {
		ballot.BallotCandidates = append(ballot.BallotCandidates, BallotCandidate{CandidateID: id})
	}
	status, err := s.repo.AppendBallot(ctx, p.ID, p.Version, ballot)
	if err != nil {
		return nil, err
	}
	if err := statusError(status); err != nil {
		return nil, err
	}

	s.afterCommit(ctx, events.Event{
		Type:         events.TypeBallotCast,
		PollID:       p.ID,
		BallotID:     ballot.ID,
		Voter:        ballot.Voter,
		CandidateIDs: append([]uint(nil), form.Candidates...),
	})
	return ballot, nil
}

// GetEditForm 返回编辑页面的表单
func (s *Service) GetEditForm(ctx context.Context, pollID uint) (*PollForm, error) {
	p, err := s.repo.FindPoll(ctx, pollID, LoadOptions{Candidates: true})
	if err != nil {
		return nil, err
	}
	form := formOf(p)
	return &form, nil
}

// Update 修改投票的标题、描述和候选项。
// ID匹配的候选项原地更新，新的候选项插入，没有提交的候选项连同选票关联一起删除。
func (s *Service) Update(ctx context.Context, routeID uint, form PollForm) (err error) {
	defer s.observe("edit", time.Now(), &err)

	if routeID != form.PollID {
		return ErrPollNotFound
	}

	p, err := s.repo.FindPoll(ctx, routeID, LoadOptions{Candidates: true})
	if err != nil {
		return err
	}

	form = normalizePollForm(form)
	if err := validatePollForm(s.validate, form, true); err != nil {
		return err
	}
	if form.Version != 0 && form.Version != p.Version {
		return ErrConcurrencyConflict
	}

	status, err := s.repo.ApplyEdit(ctx, PollEdit{
		PollID:          p.ID,
		ExpectedVersion: p.Version,
		Name:            form.Name,
		Description:     form.Description,
		Plan:            planCandidateEdit(p.Candidates, form.Candidates),
	})
	if err != nil {
		return err
	}
	if err := statusError(status); err != nil {
		return err
	}

	s.afterCommit(ctx, events.Event{Type: events.TypePollUpdated, PollID: p.ID})
	return nil
}

// GetDeleteConfirmation 返回删除确认页需要的数据
func (s *Service) GetDeleteConfirmation(ctx context.Context, pollID uint) (*DeleteConfirmation, error) {
	p, err := s.repo.FindPoll(ctx, pollID, LoadOptions{Candidates: true, Ballots: true})
	if err != nil {
		return nil, err
	}
	return &DeleteConfirmation{
		Poll:           headerOf(p),
		CandidateCount: len(p.Candidates),
		BallotCount:    len(p.Ballots),
	}, nil
}

// DeleteConfirmed 删除投票以及它的候选项、选票和选票关联。投票已经不存在时返回 ErrPollNotFound。
func (s *Service) DeleteConfirmed(ctx context.Context, pollID uint) (err error) {
	defer s.observe("delete", time.Now(), &err)

	p, err := s.repo.FindPoll(ctx, pollID, LoadOptions{})
	if err != nil {
		return err
	}
	status, err := s.repo.DeletePollGraph(ctx, p.ID, p.Version)
	if err != nil {
		return err
	}
	if err := statusError(status); err != nil {
		return err
	}

	s.afterCommit(ctx, events.Event{Type: events.TypePollDeleted, PollID: p.ID})
	return nil
}

// statusError 把仓库的保存结果转换为服务层的错误
func statusError(status SaveStatus) error {
	switch status {
	case SaveOK:
		return nil
	case SaveNotFound:
		return ErrPollNotFound
	default:
		return ErrConcurrencyConflict
	}
}

// afterCommit 使列表缓存失效并发布事件，失败只记录日志
func (s *Service) afterCommit(ctx context.Context, event events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), afterCommitTimeout)
	defer cancel()

	s.cache.Invalidate(ctx)

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "poll event publish failed",
			"event", "poll_event_publish_failed",
			"module", "poll",
			"layer", "service",
			"error", err.Error(),
			"event_type", event.Type,
			"poll_id", event.PollID,
		)
	}
}

func (s *Service) observe(operation string, started time.Time, errp *error) {
	s.metrics.Observe(operation, outcomeOf(*errp), started)
}

func outcomeOf(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrPollNotFound):
		return metrics.OutcomeNotFound
	case errors.As(err, &verr):
		return metrics.OutcomeInvalid
	case errors.Is(err, ErrConcurrencyConflict):
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeError
	}
}
