package notification

import (
	"strings"
	"sync"

	"github.com/ogurasousui/employer-onboarding/internal/core/validation"
)

// DefaultKey はキー未指定で追加された通知に付与されるキーです。
const DefaultKey = "notification"

// Entry は業務ルール違反 1 件分の通知です。
type Entry struct {
	Key     string
	Message string
}

// Store はリクエスト単位で通知を蓄積する追記専用のコレクションです。
// 一度追加された通知を取り消す操作は提供しません。
type Store struct {
	mu      sync.Mutex
	entries []Entry
}

// NewStore は空の Store を生成します。
func NewStore() *Store {
	return &Store{}
}

// Add はキー未指定の通知を追加します。
func (s *Store) Add(message string) {
	s.AddWithKey(DefaultKey, message)
}

// AddWithKey はキー付きの通知を追加します。
func (s *Store) AddWithKey(key, message string) {
	if strings.TrimSpace(key) == "" {
		key = DefaultKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Entry{Key: key, Message: message})
}

// AddAll は複数の通知を順序を保ったまま追加します。
func (s *Store) AddAll(entries ...Entry) {
	for _, e := range entries {
		s.AddWithKey(e.Key, e.Message)
	}
}

// AddFailures は検証結果の不合格をすべて追加します。
func (s *Store) AddFailures(result validation.Result) {
	for _, f := range result.Failures {
		s.AddWithKey(f.Key, f.Message)
	}
}

// HasNotifications は通知が 1 件以上存在するかを返します。
func (s *Store) HasNotifications() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries) > 0
}

// Notifications は追加順の通知一覧のコピーを返します。
func (s *Store) Notifications() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Messages は追加順のメッセージ一覧を返します。
func (s *Store) Messages() []string {
	entries := s.Notifications()
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Message)
	}
	return out
}
