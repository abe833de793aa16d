package paginate

import (
	"errors"
	"fmt"

	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/adapter"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/session"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/pkg/types"
)

// ErrProtocolMismatch reports that required round-tripped state was absent
// where the strategy depends on it. The engine never guesses missing state.
var ErrProtocolMismatch = errors.New("required pagination state missing")

// strategy selects how the next request is built. Implementations mutate
// only their own fields plus the session token store and are driven
// strictly sequentially.
type strategy interface {
	// first builds the unit's initial request.
	first() (session.Request, error)
	// observe inspects each successful response before extraction runs.
	// firstPage reports whether this is the unit's first response.
	observe(body []byte, firstPage bool) error
	// next builds the following request; rows is how many records the
	// current page yielded. ok=false means the strategy's own stop
	// condition is satisfied.
	next(rows int) (req session.Request, ok bool)
}

func newStrategy(site adapter.Site, unit types.WorkUnit, sess *session.Session, progress *Progress) (strategy, error) {
	p := site.Pagination
	switch p.Kind {
	case adapter.Offset:
		if p.PageRequest == nil {
			return nil, fmt.Errorf("site %s: offset pagination requires a page request builder", site.Name)
		}
		return &offsetStrategy{
			unit:     unit,
			build:    p.PageRequest,
			count:    site.ResultCount,
			page:     p.FirstPage,
			pageSize: site.PageSize,
			progress: progress,
		}, nil
	case adapter.Token:
		if p.InitialRequest == nil || p.FindNext == nil || p.PostRequest == nil {
			return nil, fmt.Errorf("site %s: token pagination requires initial request, link finder, and postback builder", site.Name)
		}
		return &tokenStrategy{
			unit:     unit,
			sess:     sess,
			tokens:   p.Tokens,
			findNext: p.FindNext,
			build:    p.PostRequest,
			initial:  p.InitialRequest,
		}, nil
	case adapter.Cursor:
		if p.InitialRequest == nil || p.Cursor == nil || p.CursorRequest == nil {
			return nil, fmt.Errorf("site %s: cursor pagination requires initial request, cursor extractor, and cursor request builder", site.Name)
		}
		return &cursorStrategy{
			unit:    unit,
			initial: p.InitialRequest,
			extract: p.Cursor,
			build:   p.CursorRequest,
		}, nil
	default:
		return nil, fmt.Errorf("site %s: unknown pagination strategy %q", site.Name, p.Kind)
	}
}

// offsetStrategy increments a page number. It stops on a short page, or on
// reaching the page count derived from the first page's announced total;
// with no total it relies on the driver's empty-page threshold.
type offsetStrategy struct {
	unit     types.WorkUnit
	build    func(types.WorkUnit, int) session.Request
	count    func([]byte) (int, bool)
	page     int
	pageSize int
	progress *Progress
}

func (s *offsetStrategy) first() (session.Request, error) {
	return s.build(s.unit, s.page), nil
}

func (s *offsetStrategy) observe(body []byte, firstPage bool) error {
	if firstPage && s.count != nil {
		if total, ok := s.count(body); ok {
			s.progress.TotalKnown = total
		}
	}
	return nil
}

func (s *offsetStrategy) next(rows int) (session.Request, bool) {
	if s.pageSize > 0 && rows < s.pageSize {
		return session.Request{}, false
	}
	if total := s.progress.TotalKnown; total >= 0 && s.pageSize > 0 {
		lastPage := s.progress.FirstPage() + (total+s.pageSize-1)/s.pageSize - 1
		if s.page >= lastPage {
			return session.Request{}, false
		}
	}
	s.page++
	return s.build(s.unit, s.page), true
}

// tokenStrategy re-plays server round-tripped state. After every response
// all tracked tokens are re-extracted into the session store; an extractor
// miss keeps the previous value rather than clearing state the server
// requires. The next target comes from the adapter's link finder.
type tokenStrategy struct {
	unit     types.WorkUnit
	sess     *session.Session
	tokens   []adapter.TokenField
	findNext func([]byte) (adapter.Postback, bool)
	build    func(types.WorkUnit, adapter.Postback, map[string]string) session.Request
	initial  func(types.WorkUnit) session.Request

	pending    adapter.Postback
	hasPending bool
}

func (s *tokenStrategy) first() (session.Request, error) {
	return s.initial(s.unit), nil
}

func (s *tokenStrategy) observe(body []byte, firstPage bool) error {
	for _, tf := range s.tokens {
		_, found := s.sess.ExtractToken(tf.Name, body, tf.Extract)
		if !found && tf.Required && firstPage {
			return fmt.Errorf("%w: token %q not present on first response", ErrProtocolMismatch, tf.Name)
		}
	}
	s.pending, s.hasPending = s.findNext(body)
	return nil
}

func (s *tokenStrategy) next(int) (session.Request, bool) {
	if !s.hasPending {
		return session.Request{}, false
	}
	return s.build(s.unit, s.pending, s.sess.Tokens()), true
}

// cursorStrategy passes an opaque continuation value verbatim. It stops
// when the cursor is absent or fails to advance, which guards against
// servers that echo the same cursor forever.
type cursorStrategy struct {
	unit    types.WorkUnit
	initial func(types.WorkUnit) session.Request
	extract func([]byte) (string, bool)
	build   func(types.WorkUnit, string) session.Request

	prev    string
	current string
	has     bool
}

func (s *cursorStrategy) first() (session.Request, error) {
	return s.initial(s.unit), nil
}

func (s *cursorStrategy) observe(body []byte, _ bool) error {
	s.current, s.has = s.extract(body)
	return nil
}

func (s *cursorStrategy) next(int) (session.Request, bool) {
	if !s.has || s.current == "" || s.current == s.prev {
		return session.Request{}, false
	}
	s.prev = s.current
	return s.build(s.unit, s.current), true
}
