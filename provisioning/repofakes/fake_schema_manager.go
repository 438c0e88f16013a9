package schemarepofakes

import (
	"context"
	"sync"

	"github.com/jrsteele09/workspark/provisioning"
)

var (
	_ provisioning.SchemaManager = (*FakeSchemaManager)(nil)
	_ provisioning.Migrator      = (*FakeMigrator)(nil)
)

type FakeSchemaManager struct {
	schemas map[string]bool
	creates map[string]int
	lock    sync.Mutex
}

func NewFakeSchemaManager(existing ...string) *FakeSchemaManager {
	m := &FakeSchemaManager{
		schemas: make(map[string]bool),
		creates: make(map[string]int),
	}
	for _, s := range existing {
		m.schemas[s] = true
	}
	return m
}

func (m *FakeSchemaManager) SchemaExists(_ context.Context, schema string) (bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.schemas[schema], nil
}

func (m *FakeSchemaManager) CreateSchema(_ context.Context, schema string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.schemas[schema] = true
	m.creates[schema]++
	return nil
}

// Creates returns how many times schema was created.
func (m *FakeSchemaManager) Creates(schema string) int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.creates[schema]
}

// FakeMigrator counts runs per schema. A schema listed in Block waits for its
// channel to close before completing.
type FakeMigrator struct {
	runs  map[string]int
	fail  map[string]error
	block map[string]chan struct{}
	lock  sync.Mutex
}

func NewFakeMigrator() *FakeMigrator {
	return &FakeMigrator{
		runs:  make(map[string]int),
		fail:  make(map[string]error),
		block: make(map[string]chan struct{}),
	}
}

// Fail makes the next runs for schema return err. A nil err clears it.
func (m *FakeMigrator) Fail(schema string, err error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if err == nil {
		delete(m.fail, schema)
		return
	}
	m.fail[schema] = err
}

// Block holds runs for schema until release is closed.
func (m *FakeMigrator) Block(schema string, release chan struct{}) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.block[schema] = release
}

func (m *FakeMigrator) Migrate(ctx context.Context, schema string) error {
	m.lock.Lock()
	release := m.block[schema]
	m.lock.Unlock()
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.runs[schema]++
	return m.fail[schema]
}

// Runs returns how many times schema was migrated.
func (m *FakeMigrator) Runs(schema string) int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.runs[schema]
}
