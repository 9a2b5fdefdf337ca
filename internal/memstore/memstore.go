// Package memstore is an in-memory store with the same contracts as the
// PostgreSQL repository: a single mutex makes every method atomic, and the
// (user, badge) uniqueness of awards is enforced on insert.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/reputation-engine/internal/domain"
)

type score struct {
	points    int64
	updatedAt time.Time
}

type awardKey struct {
	userID  string
	badgeID string
}

// Store holds all state in maps guarded by one mutex
type Store struct {
	mu sync.RWMutex

	users         map[string]domain.User
	emails        map[string]string
	scores        map[string]*score
	reasons       map[string][]domain.ScoreReason
	reasonSeq     int64
	badges        map[string]domain.Badge
	badgeNames    map[string]string
	awards        map[awardKey]domain.BadgeAward
	tutorProfiles map[string]domain.TutorProfile
	stats         map[string]domain.UserStats
	audit         []domain.AuditRecord
	notifications map[string]domain.Notification
}

// New creates an empty store
func New() *Store {
	return &Store{
		users:         make(map[string]domain.User),
		emails:        make(map[string]string),
		scores:        make(map[string]*score),
		reasons:       make(map[string][]domain.ScoreReason),
		badges:        make(map[string]domain.Badge),
		badgeNames:    make(map[string]string),
		awards:        make(map[awardKey]domain.BadgeAward),
		tutorProfiles: make(map[string]domain.TutorProfile),
		stats:         make(map[string]domain.UserStats),
		notifications: make(map[string]domain.Notification),
	}
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Users

func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emails[user.Email]; ok {
		return domain.ErrUserExists
	}
	if _, ok := s.users[user.ID]; ok {
		return domain.ErrUserExists
	}
	s.users[user.ID] = user
	s.emails[user.Email] = user.ID
	s.scores[user.ID] = &score{updatedAt: user.CreatedAt}
	s.stats[user.ID] = domain.UserStats{UserID: user.ID, LastUpdated: user.CreatedAt}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := []domain.User{}
	for _, u := range s.users {
		if role == "" || u.Role == role {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (s *Store) GetStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stats[userID]
	if !ok {
		return nil, domain.ErrStatsNotFound
	}
	return &st, nil
}

func (s *Store) IncrementStats(ctx context.Context, userID string, inc domain.StatsIncrement, at time.Time) (*domain.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stats[userID]
	if !ok {
		return nil, domain.ErrStatsNotFound
	}
	st.TotalStudyHours += inc.StudyHours
	st.MaterialsUploaded += inc.MaterialsUploaded
	st.SessionsCompleted += inc.SessionsCompleted
	st.GoalsCompleted += inc.GoalsCompleted
	if inc.AvgLikes != nil {
		st.AvgLikes = *inc.AvgLikes
	}
	st.LastUpdated = at
	s.stats[userID] = st
	return &st, nil
}

// Ledger

func (s *Store) AddPoints(ctx context.Context, userID, reason string, amount int64, at time.Time, recent int) (*domain.ScoreView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.scores[userID]
	if !ok {
		return nil, domain.ErrScoreNotFound
	}
	sc.points += amount
	sc.updatedAt = at
	s.reasonSeq++
	s.reasons[userID] = append(s.reasons[userID], domain.ScoreReason{
		ID:        s.reasonSeq,
		UserID:    userID,
		Reason:    reason,
		Amount:    amount,
		CreatedAt: at,
	})

	view := &domain.ScoreView{
		UserID:   userID,
		Total:    sc.points,
		Reasons:  []domain.ScoreReason{},
		Revision: s.reasonSeq,
	}
	if recent > 0 {
		view.Reasons = page(newestFirst(s.reasons[userID]), recent, 0)
	}
	return view, nil
}

func (s *Store) GetPoints(ctx context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.scores[userID]
	if !ok {
		return 0, domain.ErrScoreNotFound
	}
	return sc.points, nil
}

func (s *Store) ListReasons(ctx context.Context, userID string, limit, offset int) ([]domain.ScoreReason, error) {
	s.mu.RLock()
	history := newestFirst(s.reasons[userID])
	s.mu.RUnlock()

	return page(history, limit, offset), nil
}

// newestFirst returns a sorted copy of history
func newestFirst(history []domain.ScoreReason) []domain.ScoreReason {
	sorted := append([]domain.ScoreReason(nil), history...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID > sorted[j].ID
	})
	return sorted
}

func (s *Store) TopScores(ctx context.Context, n int) ([]domain.StandingEntry, error) {
	s.mu.RLock()
	entries := make([]domain.StandingEntry, 0, len(s.scores))
	for id, sc := range s.scores {
		entries = append(entries, domain.StandingEntry{UserID: id, Points: sc.points})
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].UserID < entries[j].UserID
	})
	entries = page(entries, n, 0)
	for i := range entries {
		entries[i].Rank = int64(i + 1)
	}
	return entries, nil
}

func (s *Store) AllPoints(ctx context.Context) ([]domain.PointsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]domain.PointsSnapshot, 0, len(s.scores))
	for id, sc := range s.scores {
		p := domain.PointsSnapshot{UserID: id, Points: sc.points}
		if history := s.reasons[id]; len(history) > 0 {
			p.Revision = history[len(history)-1].ID
		}
		snapshot = append(snapshot, p)
	}
	return snapshot, nil
}

// Badges

func (s *Store) CreateBadge(ctx context.Context, badge domain.Badge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.badgeNames[badge.Name]; ok {
		return domain.ErrBadgeExists
	}
	s.badges[badge.ID] = badge
	s.badgeNames[badge.Name] = badge.ID
	return nil
}

func (s *Store) EnsureBadge(ctx context.Context, badge domain.Badge) (bool, error) {
	err := s.CreateBadge(ctx, badge)
	if errors.Is(err, domain.ErrBadgeExists) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) GetBadge(ctx context.Context, badgeID string) (*domain.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.badges[badgeID]
	if !ok {
		return nil, domain.ErrBadgeNotFound
	}
	return &b, nil
}

func (s *Store) GetBadgeByName(ctx context.Context, name string) (*domain.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.badgeNames[name]
	if !ok {
		return nil, domain.ErrBadgeNotFound
	}
	b := s.badges[id]
	return &b, nil
}

func (s *Store) ListBadges(ctx context.Context) ([]domain.Badge, error) {
	s.mu.RLock()
	counts := make(map[string]int64)
	for k := range s.awards {
		counts[k.badgeID]++
	}
	badges := make([]domain.Badge, 0, len(s.badges))
	for _, b := range s.badges {
		b.AwardCount = counts[b.ID]
		badges = append(badges, b)
	}
	s.mu.RUnlock()

	sort.Slice(badges, func(i, j int) bool {
		if !badges[i].CreatedAt.Equal(badges[j].CreatedAt) {
			return badges[i].CreatedAt.Before(badges[j].CreatedAt)
		}
		return badges[i].Name < badges[j].Name
	})
	return badges, nil
}

func (s *Store) InsertAward(ctx context.Context, award domain.BadgeAward) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[award.UserID]; !ok {
		return domain.ErrUserNotFound
	}
	if _, ok := s.badges[award.BadgeID]; !ok {
		return domain.ErrBadgeNotFound
	}
	key := awardKey{userID: award.UserID, badgeID: award.BadgeID}
	if _, ok := s.awards[key]; ok {
		return domain.ErrAwardExists
	}
	s.awards[key] = award
	return nil
}

func (s *Store) ListUserBadges(ctx context.Context, userID string) ([]domain.UserBadge, error) {
	s.mu.RLock()
	badges := []domain.UserBadge{}
	for k, a := range s.awards {
		if k.userID != userID {
			continue
		}
		b := s.badges[k.badgeID]
		badges = append(badges, domain.UserBadge{
			BadgeID:     b.ID,
			Name:        b.Name,
			Description: b.Description,
			IconURL:     b.IconURL,
			AwardedAt:   a.AwardedAt,
			Reason:      a.Reason,
		})
	}
	s.mu.RUnlock()

	sort.Slice(badges, func(i, j int) bool {
		if !badges[i].AwardedAt.Equal(badges[j].AwardedAt) {
			return badges[i].AwardedAt.After(badges[j].AwardedAt)
		}
		return badges[i].Name < badges[j].Name
	})
	return badges, nil
}

// Rule candidates

func (s *Store) MatchThresholds(ctx context.Context, population domain.Population, thresholds []domain.Threshold) ([]string, error) {
	for _, t := range thresholds {
		if !population.Supports(t.Field) {
			return nil, fmt.Errorf("field %q not available on %s", t.Field, population)
		}
	}

	s.mu.RLock()
	var userIDs []string
	switch population {
	case domain.PopulationTutorProfiles:
		for id, p := range s.tutorProfiles {
			if matchAll(thresholds, func(f domain.Field) *float64 { return profileField(p, f) }) {
				userIDs = append(userIDs, id)
			}
		}
	case domain.PopulationUserStats:
		for id, st := range s.stats {
			if matchAll(thresholds, func(f domain.Field) *float64 { return statsField(st, f) }) {
				userIDs = append(userIDs, id)
			}
		}
	default:
		s.mu.RUnlock()
		return nil, fmt.Errorf("unknown population %q", population)
	}
	s.mu.RUnlock()

	sort.Strings(userIDs)
	return userIDs, nil
}

func matchAll(thresholds []domain.Threshold, value func(domain.Field) *float64) bool {
	for _, t := range thresholds {
		v := value(t.Field)
		if v == nil || *v < t.Min {
			return false
		}
	}
	return true
}

func profileField(p domain.TutorProfile, f domain.Field) *float64 {
	switch f {
	case domain.FieldAvgRating:
		return p.AvgRating
	case domain.FieldTotalRatings:
		return intField(p.TotalRatings)
	case domain.FieldSessionsLastMonth:
		return intField(p.SessionsLastMonth)
	case domain.FieldResponseTime:
		return p.ResponseTimeSeconds
	case domain.FieldAvailabilityScore:
		return p.AvailabilityScore
	}
	return nil
}

func statsField(st domain.UserStats, f domain.Field) *float64 {
	var v float64
	switch f {
	case domain.FieldMaterialsUploaded:
		v = float64(st.MaterialsUploaded)
	case domain.FieldAvgLikes:
		v = st.AvgLikes
	case domain.FieldSessionsCompleted:
		v = float64(st.SessionsCompleted)
	case domain.FieldTotalStudyHours:
		v = st.TotalStudyHours
	case domain.FieldGoalsCompleted:
		v = float64(st.GoalsCompleted)
	default:
		return nil
	}
	return &v
}

func intField(v *int64) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

// Tutors

func (s *Store) ListTutorCandidates(ctx context.Context) ([]domain.TutorCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []domain.TutorCandidate
	for id, p := range s.tutorProfiles {
		u, ok := s.users[id]
		if !ok || u.Role != domain.RoleTutor {
			continue
		}
		c := domain.TutorCandidate{
			UserID:  u.ID,
			Name:    u.Name,
			Email:   u.Email,
			Profile: p,
		}
		if sc, ok := s.scores[id]; ok {
			points := sc.points
			c.Points = &points
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (s *Store) UpsertTutorProfile(ctx context.Context, userID string, update domain.TutorProfileUpdate, at time.Time) (*domain.TutorProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return nil, domain.ErrUserNotFound
	}
	p, ok := s.tutorProfiles[userID]
	if !ok {
		p = domain.TutorProfile{UserID: userID, Subjects: []string{}}
	}
	update.Apply(&p)
	p.UpdatedAt = at
	s.tutorProfiles[userID] = p
	return &p, nil
}

// Audit

func (s *Store) InsertAudit(ctx context.Context, rec domain.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit = append(s.audit, rec)
	return nil
}

func (s *Store) ListAudit(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, int64, error) {
	s.mu.RLock()
	var matched []domain.AuditRecord
	for _, rec := range s.audit {
		if auditMatches(rec, filter) {
			matched = append(matched, rec)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return page(matched, filter.Limit, filter.Offset), int64(len(matched)), nil
}

func auditMatches(rec domain.AuditRecord, f domain.AuditFilter) bool {
	if f.ActorUserID != "" && rec.ActorUserID != f.ActorUserID {
		return false
	}
	if f.Action != "" && !strings.Contains(strings.ToLower(rec.Action), strings.ToLower(f.Action)) {
		return false
	}
	if f.ResourceType != "" && rec.ResourceType != f.ResourceType {
		return false
	}
	if f.ResourceID != "" && rec.ResourceID != f.ResourceID {
		return false
	}
	if !f.From.IsZero() && rec.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && rec.CreatedAt.After(f.To) {
		return false
	}
	return true
}

// Notifications

func (s *Store) InsertNotification(ctx context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[n.UserID]; !ok {
		return domain.ErrUserNotFound
	}
	s.notifications[n.ID] = n
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	s.mu.RLock()
	notifications := []domain.Notification{}
	for _, n := range s.notifications {
		if n.UserID == userID {
			notifications = append(notifications, n)
		}
	}
	s.mu.RUnlock()

	sort.Slice(notifications, func(i, j int) bool {
		if !notifications[i].CreatedAt.Equal(notifications[j].CreatedAt) {
			return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
		}
		return notifications[i].ID > notifications[j].ID
	})
	return notifications, nil
}

func (s *Store) UpdateNotificationStatus(ctx context.Context, id string, status domain.NotificationStatus, at time.Time) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return nil, domain.ErrNotificationNotFound
	}
	n.Status = status
	if status == domain.NotificationSent {
		sentAt := at
		n.SentAt = &sentAt
	}
	s.notifications[id] = n
	return &n, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
