// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/darasa/core/doubt"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/topic"
	"github.com/trezcool/darasa/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	schoolName string,
	grade int,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		School:    schoolName,
		Grade:     grade,
		Roles:     roles,
		IsActive:  &isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func CreateSchool(t *testing.T, repo school.Repository, name string) school.School {
	t.Helper()

	now := time.Now().UTC()
	sch, err := repo.CreateSchool(context.Background(), school.School{
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateSchool(): %v", err)
	}
	return sch
}

func CreateTopic(t *testing.T, repo topic.Repository, title, subject string, grade int) topic.Topic {
	t.Helper()

	now := time.Now().UTC()
	top, err := repo.CreateTopic(context.Background(), topic.Topic{
		Title:     title,
		Subject:   subject,
		Grade:     grade,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateTopic(): %v", err)
	}
	return top
}

func CreateSession(
	t *testing.T,
	repo doubt.Repository,
	student user.User,
	sch school.School,
	typ doubt.Type,
	status doubt.Status,
	trainerID, topicID, text string,
) doubt.Session {
	t.Helper()

	now := time.Now().UTC()
	sess, err := repo.CreateSession(context.Background(), doubt.Session{
		StudentID:     student.ID,
		TrainerID:     trainerID,
		TopicID:       topicID,
		SchoolID:      sch.ID,
		Grade:         student.Grade,
		Type:          typ,
		Status:        status,
		DoubtText:     text,
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("CreateSession(): %v", err)
	}
	if text != "" {
		if _, err = repo.CreateMessage(context.Background(), doubt.Message{
			SessionID:  sess.ID,
			SenderID:   student.ID,
			SenderRole: doubt.SenderStudent,
			Text:       text,
			CreatedAt:  now,
		}); err != nil {
			t.Fatalf("CreateSession(): %v", err)
		}
	}
	return sess
}
