package user

import "time"

type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	DisplayName      string    `json:"displayName,omitempty"`
	PurchasedCourses []string  `json:"purchasedCourses"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (u User) Owns(courseID string) bool {
	for _, id := range u.PurchasedCourses {
		if id == courseID {
			return true
		}
	}
	return false
}
