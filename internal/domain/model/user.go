package model

type Role string

const (
	RoleBuyer      Role = "BUYER"
	RoleRestaurant Role = "RESTAURANT"
	RoleAdmin      Role = "ADMIN"

	//プロセス内だけ（決済コールバック・reaper）
	RoleSystem Role = "SYSTEM"
)

// 操作した人。認証は外部コンポーネントでここではトークンの中身だけ使う
type Actor struct {
	UserID       int64
	Role         Role
	RestaurantID int64
}

func SystemActor() Actor {
	return Actor{Role: RoleSystem}
}
