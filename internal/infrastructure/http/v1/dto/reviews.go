package dto

import (
	"lms/internal/core/id"
	"lms/internal/domain/reviews"
)

// SubmitReviewRequest is the request body for reviewing a course.
type SubmitReviewRequest struct {
	CourseID  id.ID  `json:"courseId" binding:"required"`
	Rating    int    `json:"rating" binding:"required,min=1,max=5"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Anonymous bool   `json:"anonymous"`
}

// ToInput converts the request.
func (r SubmitReviewRequest) ToInput() reviews.SubmitInput {
	return reviews.SubmitInput{
		CourseID:  r.CourseID,
		Rating:    r.Rating,
		Title:     r.Title,
		Body:      r.Body,
		Anonymous: r.Anonymous,
	}
}

// EditReviewRequest replaces the author's rating and text.
type EditReviewRequest struct {
	Rating int    `json:"rating" binding:"required,min=1,max=5"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// ToInput converts the request.
func (r EditReviewRequest) ToInput() reviews.EditInput {
	return reviews.EditInput{Rating: r.Rating, Title: r.Title, Body: r.Body}
}

// ModerateReviewRequest approves, rejects or hides a review.
type ModerateReviewRequest struct {
	Status string `json:"status" binding:"required,oneof=approved rejected hidden"`
	Note   string `json:"note"`
}
