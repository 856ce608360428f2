package scraper

import (
	"context"
	"errors"
	"sync"
	"time"

	"sjsage522/postscraper/services/cache"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu     sync.Mutex
	cache   map[string][]byte
	deleted []string
	getErr  error
	setErr  error
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, cache.ErrMiss
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	delete(m.cache, key)
	return nil
}

// MockRenderer returns canned markup per url
type MockRenderer struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	calls  map[string]int
	lastTO time.Duration
}

func NewMockRenderer() *MockRenderer {
	return &MockRenderer{
		pages: make(map[string]string),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (m *MockRenderer) Render(ctx context.Context, url string, timeout time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[url]++
	m.lastTO = timeout
	if err, ok := m.errs[url]; ok {
		return "", err
	}
	if page, ok := m.pages[url]; ok {
		return page, nil
	}
	return "", errors.New("no canned page")
}

func (m *MockRenderer) Calls(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[url]
}

// postHTML mimics a rendered post page with every field present
const postHTML = `<!DOCTYPE html>
<html>
<head>
	<meta property="og:title" content="Weekend sale" />
	<meta name="description" content="Everything must go" />
</head>
<body>
	<div id="u_0_d"><div class="login">Log in to continue</div></div>
	<div id="content_container">
		<abbr title="Monday, 3 June 2019 at 10:15"><span class="timestampContent" id="js_12">3 June</span></abbr>
		<a data-testid="UFI2ReactionsCount/root" href="#"><span><span>1.2K</span></span></a>
		<a href="#" class="comments"> 345 comments</a>
		<a data-testid="UFI2SharesCount/root" href="#">67 shares</a>
		<span>8,901 views</span>
		<a data-lynx-mode="async" id="u_0_2x" href="https://l.example.com/l.php?u=https%3A%2F%2Fshop.example.com%2Fsale%3Fref%3Dfb&amp;h=AT0">shop</a>
	</div>
</body>
</html>`
