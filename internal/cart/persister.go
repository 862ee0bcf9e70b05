package cart

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

type Persister interface {
	Load() (State, error)
	Save(st State) error
}

// FilePersister はJSONファイルに保存する。書き込みは一時ファイル→fsync→rename
type FilePersister struct {
	path string
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

func (p *FilePersister) Load() (State, error) {
	b, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return State{}, nil
	}
	if err != nil {
		return State{}, err
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return State{}, fmt.Errorf("decode %s: %w", p.path, err)
	}
	return st, nil
}

func (p *FilePersister) Save(st State) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".cart-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p.path)
}

// MemoryPersister はテストとプロセス内だけで使う
type MemoryPersister struct {
	mu      sync.Mutex
	state   *State
	LoadErr error
	SaveErr error
	Saves   int
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

func (p *MemoryPersister) Load() (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.LoadErr != nil {
		return State{}, p.LoadErr
	}
	if p.state == nil {
		return State{}, nil
	}
	return cloneState(*p.state), nil
}

func (p *MemoryPersister) Save(st State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SaveErr != nil {
		return p.SaveErr
	}
	c := cloneState(st)
	p.state = &c
	p.Saves++
	return nil
}

func cloneState(st State) State {
	items := make([]Item, len(st.Items))
	copy(items, st.Items)
	st.Items = items
	return st
}
