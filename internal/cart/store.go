package cart

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
)

var ErrInvalidQuantity = errors.New("quantity must be a whole number")

// カートに入れる食品（カタログから取ってきたもの）
type Food struct {
	ID           int64
	RestaurantID int64
	Name         string
}

type Item struct {
	FoodID       int64  `json:"food_id"`
	RestaurantID int64  `json:"restaurant_id"`
	Name         string `json:"name,omitempty"`
	UnitPrice    int64  `json:"unit_price"`
	Quantity     int64  `json:"quantity"`
}

// 永続化する中身。Revisionは変更のたびに変わる（チェックアウトの冪等キー）
type State struct {
	Items     []Item    `json:"items"`
	Revision  string    `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RestaurantGroup struct {
	RestaurantID int64  `json:"restaurant_id"`
	Items        []Item `json:"items"`
	Subtotal     int64  `json:"subtotal"`
}

// Store は1セッション分のカート。変更は保存が終わってから返る
type Store struct {
	mu     sync.Mutex
	p      Persister
	state  State
	logger *log.Logger
}

// NewStore は保存済みのカートを読む。読めなければ空から始める
func NewStore(p Persister, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New("cart")
	}
	s := &Store{p: p, logger: logger}

	st, err := p.Load()
	if err != nil {
		logger.Warnf("load cart failed, starting empty: %v", err)
		st = State{}
	}
	s.state = sanitize(st)
	return s
}

// 壊れた保存データ（数量0以下、同じ食品の重複）は読み込み時に直す
func sanitize(st State) State {
	seen := make(map[int64]int, len(st.Items))
	items := make([]Item, 0, len(st.Items))
	for _, it := range st.Items {
		if it.FoodID <= 0 || it.Quantity <= 0 || it.UnitPrice < 0 {
			continue
		}
		if i, ok := seen[it.FoodID]; ok {
			items[i].Quantity += it.Quantity
			continue
		}
		seen[it.FoodID] = len(items)
		items = append(items, it)
	}
	st.Items = items
	if st.Revision == "" {
		st.Revision = uuid.NewString()
	}
	return st
}

// AddItem は同じ食品なら数量+1、無ければ数量1で追加
func (s *Store) AddItem(food Food, unitPrice int64) error {
	if food.ID <= 0 || unitPrice < 0 {
		return errors.New("invalid food")
	}
	return s.mutate(func(items []Item) []Item {
		for i := range items {
			if items[i].FoodID == food.ID {
				items[i].Quantity++
				items[i].UnitPrice = unitPrice
				return items
			}
		}
		return append(items, Item{
			FoodID:       food.ID,
			RestaurantID: food.RestaurantID,
			Name:         food.Name,
			UnitPrice:    unitPrice,
			Quantity:     1,
		})
	})
}

// SetQuantity は n<=0 なら削除
func (s *Store) SetQuantity(foodID int64, n int64) error {
	if n <= 0 {
		return s.RemoveItem(foodID)
	}
	return s.mutate(func(items []Item) []Item {
		for i := range items {
			if items[i].FoodID == foodID {
				items[i].Quantity = n
			}
		}
		return items
	})
}

// SetQuantityString は入力欄の文字列をそのまま受ける
func (s *Store) SetQuantityString(foodID int64, raw string) error {
	n, err := ParseQuantity(raw)
	if err != nil {
		return err
	}
	return s.SetQuantity(foodID, n)
}

// "2" はOK、"1.5" や "abc" は ErrInvalidQuantity
func ParseQuantity(raw string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, ErrInvalidQuantity
	}
	return n, nil
}

func (s *Store) RemoveItem(foodID int64) error {
	return s.mutate(func(items []Item) []Item {
		out := items[:0]
		for _, it := range items {
			if it.FoodID != foodID {
				out = append(out, it)
			}
		}
		return out
	})
}

func (s *Store) Clear() error {
	return s.mutate(func([]Item) []Item { return []Item{} })
}

// mutate はコピーに変更を当てて保存し、保存できたときだけ反映する
func (s *Store) mutate(fn func([]Item) []Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]Item, len(s.state.Items))
	copy(items, s.state.Items)

	next := State{
		Items:     fn(items),
		Revision:  uuid.NewString(),
		UpdatedAt: time.Now(),
	}
	if err := s.p.Save(next); err != nil {
		return err
	}
	s.state = next
	return nil
}

// RemoveCheckedOut は注文に出した分だけ数量を減らす。
// 送信中に足された分はカートに残る
func (s *Store) RemoveCheckedOut(sent []Item) error {
	ordered := make(map[int64]int64, len(sent))
	for _, it := range sent {
		ordered[it.FoodID] += it.Quantity
	}
	return s.mutate(func(items []Item) []Item {
		out := items[:0]
		for _, it := range items {
			it.Quantity -= ordered[it.FoodID]
			if it.Quantity > 0 {
				out = append(out, it)
			}
		}
		return out
	})
}

// Snapshot は中身とRevisionを同じロックで取る
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneState(s.state)
}

func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.state.Items))
	copy(out, s.state.Items)
	return out
}

func (s *Store) Revision() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Revision
}

func (s *Store) Subtotal() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, it := range s.state.Items {
		total += it.UnitPrice * it.Quantity
	}
	return total
}

func (s *Store) TotalItems() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, it := range s.state.Items {
		n += it.Quantity
	}
	return n
}

func (s *Store) IsEmpty() bool {
	return s.TotalItems() == 0
}

// GroupByRestaurant は表示用。店舗は最初に出てきた順
func (s *Store) GroupByRestaurant() []RestaurantGroup {
	items := s.Items()
	idx := map[int64]int{}
	groups := []RestaurantGroup{}
	for _, it := range items {
		i, ok := idx[it.RestaurantID]
		if !ok {
			i = len(groups)
			idx[it.RestaurantID] = i
			groups = append(groups, RestaurantGroup{RestaurantID: it.RestaurantID})
		}
		groups[i].Items = append(groups[i].Items, it)
		groups[i].Subtotal += it.UnitPrice * it.Quantity
	}
	return groups
}
