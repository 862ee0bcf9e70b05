package usecase

import (
	"context"
	"errors"
	"strings"

	"foodrescue/internal/domain/model"
	repo "foodrescue/internal/repository"
)

// FoodUsecase はカタログの読み取りだけ。カートに入れる前の価格・店舗の確認に使う
type FoodUsecase struct {
	foods repo.FoodRepository
}

func NewFoodUsecase(foods repo.FoodRepository) *FoodUsecase {
	return &FoodUsecase{foods: foods}
}

// GET /foods の入力
type ListFoodsInput struct {
	RestaurantID *int64
	Q            string
	MinPrice     *int64
	MaxPrice     *int64
	Sort         string
	Page         int
	Limit        int
}

type FoodOutput struct {
	ID           int64  `json:"id"`
	RestaurantID int64  `json:"restaurant_id"`
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	QuantityLeft int64  `json:"quantity_left"`
}

type FoodListOutput struct {
	Items []FoodOutput `json:"items"`
	Total int64        `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
}

func (u *FoodUsecase) ListFoods(ctx context.Context, in ListFoodsInput) (FoodListOutput, error) {
	if in.Page < 1 {
		return FoodListOutput{}, withMessage(ErrValidation, "invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return FoodListOutput{}, withMessage(ErrValidation, "invalid limit")
	}
	if len(in.Q) > 100 {
		return FoodListOutput{}, withMessage(ErrValidation, "q too long")
	}
	if in.RestaurantID != nil && *in.RestaurantID <= 0 {
		return FoodListOutput{}, withMessage(ErrValidation, "invalid restaurant_id")
	}
	if in.MinPrice != nil && *in.MinPrice < 0 {
		return FoodListOutput{}, withMessage(ErrValidation, "min_price must be >= 0")
	}
	if in.MaxPrice != nil && *in.MaxPrice < 0 {
		return FoodListOutput{}, withMessage(ErrValidation, "max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && *in.MinPrice > *in.MaxPrice {
		return FoodListOutput{}, withMessage(ErrValidation, "min_price must be <= max_price")
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc":
	default:
		return FoodListOutput{}, withMessage(ErrValidation, "invalid sort")
	}

	foods, total, err := u.foods.ListAvailable(ctx, repo.FoodListQuery{
		RestaurantID: in.RestaurantID,
		Q:            strings.TrimSpace(in.Q),
		MinPrice:     in.MinPrice,
		MaxPrice:     in.MaxPrice,
		Sort:         in.Sort,
		Page:         in.Page,
		Limit:        in.Limit,
	})
	if err != nil {
		return FoodListOutput{}, internal(err)
	}

	items := make([]FoodOutput, 0, len(foods))
	for _, f := range foods {
		items = append(items, toFoodOutput(f))
	}
	return FoodListOutput{Items: items, Total: total, Page: in.Page, Limit: in.Limit}, nil
}

// 削除済み・販売停止中は存在しない扱い
func (u *FoodUsecase) GetFood(ctx context.Context, foodID int64) (FoodOutput, error) {
	if foodID <= 0 {
		return FoodOutput{}, withMessage(ErrValidation, "invalid food id")
	}

	f, err := u.foods.FindByID(ctx, foodID)
	if errors.Is(err, repo.ErrNotFound) {
		return FoodOutput{}, ErrNotFound
	}
	if err != nil {
		return FoodOutput{}, internal(err)
	}
	if !f.IsAvailable {
		return FoodOutput{}, ErrNotFound
	}
	return toFoodOutput(f), nil
}

func toFoodOutput(f model.Food) FoodOutput {
	return FoodOutput{
		ID:           f.ID,
		RestaurantID: f.RestaurantID,
		Name:         f.Name,
		Price:        f.Price,
		QuantityLeft: f.Quantity,
	}
}
