package user

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/klipach/vchat/store"
)

const directoryLimit = 50

// Directory streams the known-user set for one client. It owns its
// snapshot cache exclusively; consumers only ever see copies.
type Directory struct {
	gw store.Gateway

	mu       sync.Mutex
	snapshot []User
	rnd      *rand.Rand
}

func NewDirectory(gw store.Gateway) *Directory {
	return &Directory{
		gw:       gw,
		snapshot: BootstrapUsers(),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Feed is a live view of the directory. Users closes after Cancel or a
// terminal subscription error (check Err); the last good snapshot stays
// available through Directory.Snapshot.
type Feed struct {
	Users <-chan []User

	sub  *store.Subscription
	done chan struct{}
	once sync.Once
}

func (f *Feed) Err() error { return f.sub.Err() }

func (f *Feed) Cancel() {
	f.once.Do(func() {
		f.sub.Cancel()
		close(f.done)
	})
}

// Subscribe opens the single ordered directory subscription. The
// bootstrap set is emitted immediately, before any remote response, so a
// consumer never observes an empty directory while loading.
func (d *Directory) Subscribe(ctx context.Context) (*Feed, error) {
	sub, err := d.gw.Subscribe(ctx, store.Query{
		Path:    Collection,
		OrderBy: "name",
		Limit:   directoryLimit,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan []User, 1)
	out <- d.Snapshot()
	feed := &Feed{Users: out, sub: sub, done: make(chan struct{})}

	go func() {
		defer close(out)
		for docs := range sub.Snapshots() {
			if len(docs) == 0 {
				// keep the bootstrap set until real data arrives
				continue
			}
			users := make([]User, 0, len(docs)+1)
			for _, doc := range docs {
				users = append(users, FromDocument(doc))
			}
			users = mergeSupport(users)
			d.setSnapshot(users)
			select {
			case out <- users:
			case <-feed.done:
				return
			}
		}
	}()
	return feed, nil
}

// Snapshot returns a copy of the last known user list.
func (d *Directory) Snapshot() []User {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]User(nil), d.snapshot...)
}

func (d *Directory) setSnapshot(users []User) {
	d.mu.Lock()
	d.snapshot = append([]User(nil), users...)
	d.mu.Unlock()
}

// Search filters the last known snapshot on name or email,
// case-insensitively. An empty term returns the full snapshot.
func (d *Directory) Search(term string) []User {
	users := d.Snapshot()
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return users
	}
	var matched []User
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Name), term) ||
			strings.Contains(strings.ToLower(u.Email), term) {
			matched = append(matched, u)
		}
	}
	return matched
}

// Recommended samples up to three contacts from users: the support user
// pinned first when present, the rest drawn at random. Output membership
// varies between calls on purpose.
func (d *Directory) Recommended(users []User) []User {
	if len(users) == 0 {
		return nil
	}
	var support *User
	rest := make([]User, 0, len(users))
	for _, u := range users {
		if u.ID == SupportUserID && support == nil {
			s := u
			support = &s
			continue
		}
		rest = append(rest, u)
	}

	d.mu.Lock()
	for i := len(rest) - 1; i > 0; i-- {
		j := d.rnd.Intn(i + 1)
		rest[i], rest[j] = rest[j], rest[i]
	}
	d.mu.Unlock()

	if support != nil {
		return append([]User{*support}, rest[:min(2, len(rest))]...)
	}
	return rest[:min(3, len(rest))]
}

// EnsureSupportUser creates the support contact if it is missing, and
// heals it when stored with incomplete fields.
func (d *Directory) EnsureSupportUser(ctx context.Context) (User, error) {
	support := SupportUser()
	fields := map[string]any{
		"name":   support.Name,
		"email":  support.Email,
		"avatar": support.Avatar,
		"status": support.Status,
	}

	doc, err := d.gw.Get(ctx, Collection, SupportUserID)
	if errors.Is(err, store.ErrNotFound) {
		fields["createdAt"] = d.gw.ServerTimestamp()
		if err := d.gw.Set(ctx, Collection, SupportUserID, fields, false); err != nil {
			return User{}, err
		}
		return support, nil
	}
	if err != nil {
		return User{}, err
	}
	if str(doc.Data["avatar"]) == "" || str(doc.Data["email"]) == "" {
		fields["updatedAt"] = d.gw.ServerTimestamp()
		if err := d.gw.Set(ctx, Collection, SupportUserID, fields, true); err != nil {
			return User{}, err
		}
	}
	return support, nil
}

func mergeSupport(users []User) []User {
	for _, u := range users {
		if u.ID == SupportUserID {
			return users
		}
	}
	return append(users, SupportUser())
}
