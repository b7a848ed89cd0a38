// Package inmemdb provides mutex-guarded in-memory repositories, used by
// tests and local toying.
package inmemdb

import (
	"sync"

	"github.com/trezcool/darasa/core/doubt"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/topic"
	"github.com/trezcool/darasa/core/user"
)

type (
	userTable struct {
		mutex sync.RWMutex
		table map[string]*user.User
	}

	schoolTable struct {
		mutex sync.RWMutex
		table map[string]*school.School
	}

	topicTable struct {
		mutex sync.RWMutex
		table map[string]*topic.Topic
	}

	doubtTable struct {
		mutex    sync.RWMutex
		sessions map[string]*doubt.Session
		messages map[string][]doubt.Message // session id -> ordered messages
	}

	DB struct {
		user   *userTable
		school *schoolTable
		topic  *topicTable
		doubt  *doubtTable
	}
)

func NewDB() *DB {
	return &DB{
		user:   &userTable{table: make(map[string]*user.User)},
		school: &schoolTable{table: make(map[string]*school.School)},
		topic:  &topicTable{table: make(map[string]*topic.Topic)},
		doubt: &doubtTable{
			sessions: make(map[string]*doubt.Session),
			messages: make(map[string][]doubt.Message),
		},
	}
}
