package resolution

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/Kanishk2Kumar/CampusPulse/internal/database"
	"github.com/Kanishk2Kumar/CampusPulse/internal/stats"
)

const requestsResolvedMetric = "RequestsResolved"

var (
	ErrMissingResolver  = errors.New("resolver name is required")
	ErrRequestNotFound  = errors.New("help request not found")
	ErrNotOwner         = errors.New("only the request owner can resolve it")
	ErrResolverNotFound = errors.New("resolver not found")
)

// PartialError reports a resolution that credited the resolver but failed to
// delete the request, leaving the store inconsistent until reconciled by hand.
type PartialError struct {
	RequestId string
	Resolver  string
	Err       error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("request %q partially resolved: %q was credited but the request was not deleted: %v",
		e.RequestId, e.Resolver, e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}

// RoomCloser evicts and notifies a live chat room once its request is gone.
type RoomCloser interface {
	CloseRoom(ctx context.Context, roomId, reason string) error
}

// Workflow closes help requests: it credits the named resolver's helped
// count, deletes the request, and tears down the chat room.
type Workflow struct {
	log   *log.Logger
	db    database.CampusRepository
	rooms RoomCloser
	stats stats.StatsProvider
}

func NewWorkflow(logger *log.Logger, db database.CampusRepository, rooms RoomCloser, sp stats.StatsProvider) *Workflow {
	sp.RegisterMetric(requestsResolvedMetric)

	return &Workflow{
		log:   logger,
		db:    db,
		rooms: rooms,
		stats: sp,
	}
}

// Resolve runs the resolution steps for the request identified by roomId on
// behalf of callerId. The helped-count increment and the request deletion are
// two independent store calls with no transaction across them; a failure
// between the two is returned as *PartialError and must not be retried
// blindly (the increment already happened).
func (w *Workflow) Resolve(ctx context.Context, callerId int, roomId, resolverName string) error {
	if resolverName == "" {
		return ErrMissingResolver
	}

	req, err := w.db.GetRequestByExternalId(roomId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRequestNotFound
		}
		return fmt.Errorf("get request %q: %w", roomId, err)
	}

	if req.OwnerId != callerId {
		return ErrNotOwner
	}

	resolver, err := w.db.FindAccountByUsername(resolverName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrResolverNotFound
		}
		return fmt.Errorf("find resolver %q: %w", resolverName, err)
	}

	if err := w.db.IncrementHelpedCount(resolver.Username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrResolverNotFound
		}
		return fmt.Errorf("increment helped count for %q: %w", resolver.Username, err)
	}

	if err := w.db.DeleteRequest(req.Id); err != nil {
		// the credit above cannot be rolled back, readers may already have
		// seen it; flag for out-of-band reconciliation
		pErr := &PartialError{RequestId: roomId, Resolver: resolver.Username, Err: err}
		w.log.Printf("PARTIAL RESOLUTION: %v", pErr)
		return pErr
	}

	w.stats.Incr(requestsResolvedMetric)
	w.log.Printf("request %q resolved, credited %q", roomId, resolver.Username)

	// notification is best-effort; the request is already gone
	if err := w.rooms.CloseRoom(ctx, roomId, "resolved"); err != nil {
		w.log.Printf("close room %q: %v", roomId, err)
	}

	return nil
}
