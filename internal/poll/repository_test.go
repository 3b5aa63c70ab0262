package poll

import (
	"context"
	"errors"
	"testing"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

func seedPoll(t *testing.T, repo *Repository, labels ...string) *Poll {
	t.Helper()
	p := &Poll{Name: "Lunch"}
	for _, l := range labels {
		p.Candidates = append(p.Candidates, Candidate{Label: l})
	}
	if err := repo.CreatePoll(context.Background(), p); err != nil {
		t.Fatalf("create poll: %v", err)
	}
	return p
}

func TestRepositoryAppendBallotDoesNotBumpVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newTestDB(t), nil)
	p := seedPoll(t, repo, "Pizza", "Tacos")

	for i := 0; i < 2; i++ {
		b := &Ballot{Voter: "v", BallotCandidates: []BallotCandidate{{CandidateID: p.Candidates[0].ID}}}
		status, err := repo.AppendBallot(ctx, p.ID, p.Version, b)
		if err != nil || status != SaveOK {
			t.Fatalf("append ballot %d: status=%s err=%v", i, status, err)
		}
		if b.ID == 0 || b.BallotCandidates[0].BallotID != b.ID {
			t.Fatalf("expected ballot and link ids to be set, got %+v", b)
		}
	}

	loaded, err := repo.FindPoll(ctx, p.ID, LoadOptions{Ballots: true, CandidateLinks: true})
	if err != nil {
		t.Fatalf("find poll: %v", err)
	}
	if loaded.Version != 1 {
		t.Fatalf("expected version 1 after votes, got %d", loaded.Version)
	}
	if len(loaded.Ballots) != 2 {
		t.Fatalf("expected 2 ballots, got %d", len(loaded.Ballots))
	}
}

func TestRepositoryStaleVersionConflicts(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newTestDB(t), nil)
	p := seedPoll(t, repo, "Pizza")

	status, err := repo.ApplyEdit(ctx, PollEdit{PollID: p.ID, ExpectedVersion: 1, Name: "Dinner"})
	if err != nil || status != SaveOK {
		t.Fatalf("first edit: status=%s err=%v", status, err)
	}

	status, err = repo.ApplyEdit(ctx, PollEdit{PollID: p.ID, ExpectedVersion: 1, Name: "Brunch"})
	if err != nil {
		t.Fatalf("stale edit: %v", err)
	}
	if status != SaveConflict {
		t.Fatalf("expected conflict, got %s", status)
	}

	status, _ = repo.AppendBallot(ctx, p.ID, 1, &Ballot{Voter: "v"})
	if status != SaveConflict {
		t.Fatalf("expected stale vote to conflict, got %s", status)
	}

	loaded, err := repo.FindPoll(ctx, p.ID, LoadOptions{Ballots: true})
	if err != nil {
		t.Fatalf("find poll: %v", err)
	}
	if loaded.Name != "Dinner" || loaded.Version != 2 {
		t.Fatalf("expected Dinner@2, got %s@%d", loaded.Name, loaded.Version)
	}
	if len(loaded.Ballots) != 0 {
		t.Fatalf("expected rolled back vote, got %d ballots", len(loaded.Ballots))
	}
}

func TestRepositoryVanishedPollIsNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newTestDB(t), nil)
	p := seedPoll(t, repo, "Pizza")

	if status, err := repo.DeletePollGraph(ctx, p.ID, p.Version); err != nil || status != SaveOK {
		t.Fatalf("delete: status=%s err=%v", status, err)
	}

	if status, _ := repo.AppendBallot(ctx, p.ID, p.Version, &Ballot{Voter: "v"}); status != SaveNotFound {
		t.Fatalf("expected not found on vote, got %s", status)
	}
	if status, _ := repo.ApplyEdit(ctx, PollEdit{PollID: p.ID, ExpectedVersion: p.Version, Name: "x"}); status != SaveNotFound {
		t.Fatalf("expected not found on edit, got %s", status)
	}
	if status, _ := repo.DeletePollGraph(ctx, p.ID, p.Version); status != SaveNotFound {
		t.Fatalf("expected not found on second delete, got %s", status)
	}
	if _, err := repo.FindPoll(ctx, p.ID, LoadOptions{}); !errors.Is(err, ErrPollNotFound) {
		t.Fatalf("expected ErrPollNotFound, got %v", err)
	}
}

func TestRepositoryDeletePollGraphLeavesOtherPolls(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewRepository(db, nil)
	doomed := seedPoll(t, repo, "Pizza", "Tacos")
	kept := seedPoll(t, repo, "Soup")

	for _, p := range []*Poll{doomed, kept} {
		b := &Ballot{Voter: "v", BallotCandidates: []BallotCandidate{{CandidateID: p.Candidates[0].ID}}}
		if status, err := repo.AppendBallot(ctx, p.ID, p.Version, b); err != nil || status != SaveOK {
			t.Fatalf("vote: status=%s err=%v", status, err)
		}
	}

	if status, err := repo.DeletePollGraph(ctx, doomed.ID, doomed.Version); err != nil || status != SaveOK {
		t.Fatalf("delete: status=%s err=%v", status, err)
	}

	if n := countRows(t, db, &Poll{}); n != 1 {
		t.Fatalf("expected 1 poll left, got %d", n)
	}
	if n := countRows(t, db, &Candidate{}); n != 1 {
		t.Fatalf("expected 1 candidate left, got %d", n)
	}
	if n := countRows(t, db, &Ballot{}); n != 1 {
		t.Fatalf("expected 1 ballot left, got %d", n)
	}
	if n := countRows(t, db, &BallotCandidate{}); n != 1 {
		t.Fatalf("expected 1 link left, got %d", n)
	}
}

func TestRepositoryListSummaries(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newTestDB(t), nil)

	empty, err := repo.ListSummaries(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", empty)
	}

	a := seedPoll(t, repo, "Pizza", "Tacos")
	b := seedPoll(t, repo, "Soup")
	vote := &Ballot{Voter: "v", BallotCandidates: []BallotCandidate{{CandidateID: a.Candidates[1].ID}}}
	if _, err := repo.AppendBallot(ctx, a.ID, a.Version, vote); err != nil {
		t.Fatalf("vote: %v", err)
	}

	list, err := repo.ListSummaries(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(list))
	}
	if list[0].PollID != a.ID || list[0].CandidateCount != 2 || list[0].BallotCount != 1 {
		t.Fatalf("unexpected first summary %+v", list[0])
	}
	if list[1].PollID != b.ID || list[1].CandidateCount != 1 || list[1].BallotCount != 0 {
		t.Fatalf("unexpected second summary %+v", list[1])
	}
}

func TestRepositoryBusyDatabaseIsConflict(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewRepository(db, nil)
	p := seedPoll(t, repo, "Pizza")

	err := db.Callback().Create().Before("gorm:create").Register("test:busy", func(tx *gorm.DB) {
		_ = tx.AddError(sqlite3.Error{Code: sqlite3.ErrBusy})
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	b := &Ballot{Voter: "v", BallotCandidates: []BallotCandidate{{CandidateID: p.Candidates[0].ID}}}
	status, err := repo.AppendBallot(ctx, p.ID, p.Version, b)
	if err != nil {
		t.Fatalf("expected busy database to surface as a status, got %v", err)
	}
	if status != SaveConflict {
		t.Fatalf("expected conflict, got %s", status)
	}
	if n := countRows(t, db, &Ballot{}); n != 0 {
		t.Fatalf("expected rolled back ballot, got %d", n)
	}
}

func TestRepositoryNameOnlyEditSkipsCandidateWrites(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewRepository(db, nil)
	p := seedPoll(t, repo, "Pizza", "Tacos")

	fail := func(tx *gorm.DB) { _ = tx.AddError(errors.New("unexpected candidate write")) }
	if err := db.Callback().Create().Before("gorm:create").Register("test:no_create", fail); err != nil {
		t.Fatalf("register create callback: %v", err)
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("test:no_delete", fail); err != nil {
		t.Fatalf("register delete callback: %v", err)
	}

	plan := planCandidateEdit(p.Candidates, []CandidateForm{
		{CandidateID: p.Candidates[0].ID, Label: "Pizza"},
		{CandidateID: p.Candidates[1].ID, Label: "Tacos"},
	})
	if !plan.Empty() {
		t.Fatalf("expected empty plan for unchanged candidates, got %+v", plan)
	}

	status, err := repo.ApplyEdit(ctx, PollEdit{PollID: p.ID, ExpectedVersion: p.Version, Name: "Dinner", Plan: plan})
	if err != nil || status != SaveOK {
		t.Fatalf("edit: status=%s err=%v", status, err)
	}

	loaded, err := repo.FindPoll(ctx, p.ID, LoadOptions{Candidates: true})
	if err != nil {
		t.Fatalf("find poll: %v", err)
	}
	if loaded.Name != "Dinner" || loaded.Version != p.Version+1 {
		t.Fatalf("expected Dinner@%d, got %s@%d", p.Version+1, loaded.Name, loaded.Version)
	}
	if len(loaded.Candidates) != 2 || loaded.Candidates[0].ID != p.Candidates[0].ID {
		t.Fatalf("expected candidates untouched, got %+v", loaded.Candidates)
	}
}
