package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	NotificationUnread = "unread"
	NotificationRead   = "read"
)

type Base struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `gorm:"index"                       json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// Image is a reference to an already uploaded asset.
type Image struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

type User struct {
	Base
	Username   string       `gorm:"uniqueIndex;size:64;not null"          json:"username"`
	Email      string       `gorm:"uniqueIndex;size:255;not null"         json:"email"`
	Password   string       `gorm:"not null"                              json:"-"`
	Avatar     Image        `gorm:"embedded;embeddedPrefix:avatar_"       json:"avatar"`
	Role       string       `gorm:"size:16;not null;default:user"         json:"role"`
	IsVerified bool         `gorm:"not null;default:false"                json:"isVerified"`
	Courses    []UserCourse `gorm:"foreignKey:UserID"                     json:"courses"`
}

func (u *User) Owns(courseID string) bool {
	for _, c := range u.Courses {
		if c.CourseID == courseID {
			return true
		}
	}
	return false
}

type UserCourse struct {
	ID        uint      `gorm:"primaryKey"                                             json:"-"`
	UserID    string    `gorm:"type:varchar(36);uniqueIndex:idx_user_course;not null"  json:"-"`
	CourseID  string    `gorm:"type:varchar(36);uniqueIndex:idx_user_course;not null"  json:"courseId"`
	CreatedAt time.Time `json:"-"`
}

type Course struct {
	Base
	Name           string          `gorm:"not null"                           json:"name"`
	Description    string          `gorm:"type:text;not null"                 json:"description"`
	Categories     string          `json:"categories"`
	Price          float64         `gorm:"not null"                           json:"price"`
	EstimatedPrice float64         `json:"estimatedPrice"`
	Thumbnail      Image           `gorm:"embedded;embeddedPrefix:thumbnail_" json:"thumbnail"`
	Tags           string          `gorm:"not null"                           json:"tags"`
	Level          string          `gorm:"not null"                           json:"level"`
	DemoURL        string          `gorm:"not null"                           json:"demoUrl"`
	Benefits       []Benefit       `gorm:"foreignKey:CourseID"                json:"benefits"`
	Prerequisites  []Prerequisite  `gorm:"foreignKey:CourseID"                json:"prerequisites"`
	Reviews        []Review        `gorm:"foreignKey:CourseID"                json:"reviews"`
	Content        []CourseContent `gorm:"foreignKey:CourseID"                json:"courseData"`
	Ratings        float64         `gorm:"not null;default:0"                 json:"ratings"`
	Purchased      int             `gorm:"not null;default:0"                 json:"purchased"`
}

type Benefit struct {
	ID       uint   `gorm:"primaryKey"                      json:"-"`
	CourseID string `gorm:"type:varchar(36);index;not null" json:"-"`
	Title    string `gorm:"not null"                        json:"title"`
}

type Prerequisite struct {
	ID       uint   `gorm:"primaryKey"                      json:"-"`
	CourseID string `gorm:"type:varchar(36);index;not null" json:"-"`
	Title    string `gorm:"not null"                        json:"title"`
}

type CourseContent struct {
	Base
	CourseID     string     `gorm:"type:varchar(36);index;not null" json:"-"`
	Position     int        `gorm:"not null"                        json:"position"`
	Title        string     `gorm:"not null"                        json:"title"`
	Description  string     `gorm:"type:text"                       json:"description"`
	VideoURL     string     `json:"videoUrl"`
	VideoSection string     `json:"videoSection"`
	VideoLength  int        `json:"videoLength"`
	VideoPlayer  string     `json:"videoPlayer"`
	Links        []Link     `gorm:"foreignKey:ContentID"            json:"links"`
	Suggestion   string     `json:"suggestion"`
	Questions    []Question `gorm:"foreignKey:ContentID"            json:"questions"`
}

type Link struct {
	ID        uint   `gorm:"primaryKey"                      json:"-"`
	ContentID string `gorm:"type:varchar(36);index;not null" json:"-"`
	Title     string `json:"title"`
	URL       string `json:"url"`
}

type Question struct {
	Base
	ContentID string  `gorm:"type:varchar(36);index;not null" json:"-"`
	UserID    string  `gorm:"type:varchar(36);not null"       json:"userId"`
	Username  string  `json:"username"`
	Text      string  `gorm:"type:text;not null"              json:"question"`
	Replies   []Reply `gorm:"polymorphic:Owner"               json:"questionReplies"`
}

type Review struct {
	Base
	CourseID string  `gorm:"type:varchar(36);index;not null" json:"-"`
	UserID   string  `gorm:"type:varchar(36);not null"       json:"userId"`
	Username string  `json:"username"`
	Rating   int     `gorm:"not null;default:0"              json:"rating"`
	Comment  string  `gorm:"type:text"                       json:"comment"`
	Replies  []Reply `gorm:"polymorphic:Owner"               json:"commentReplies"`
}

// Reply belongs to either a Question or a Review.
type Reply struct {
	Base
	OwnerID   string `gorm:"type:varchar(36);index;not null" json:"-"`
	OwnerType string `gorm:"size:32;not null"                json:"-"`
	UserID    string `gorm:"type:varchar(36);not null"       json:"userId"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	Text      string `gorm:"type:text;not null"              json:"text"`
}

type Order struct {
	Base
	CourseID      string `gorm:"type:varchar(36);index;not null" json:"courseId"`
	UserID        string `gorm:"type:varchar(36);index;not null" json:"userId"`
	PaymentID     string `json:"paymentId,omitempty"`
	PaymentStatus string `json:"paymentStatus,omitempty"`
}

type Notification struct {
	Base
	UserID  string `gorm:"type:varchar(36);index"      json:"userId"`
	Title   string `gorm:"not null"                    json:"title"`
	Message string `gorm:"type:text;not null"          json:"message"`
	Status  string `gorm:"size:16;not null;default:unread;index" json:"status"`
}

func All() []any {
	return []any{
		&User{}, &UserCourse{},
		&Course{}, &Benefit{}, &Prerequisite{}, &CourseContent{}, &Link{},
		&Question{}, &Review{}, &Reply{},
		&Order{}, &Notification{},
	}
}
