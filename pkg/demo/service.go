package demo

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type Pet struct {
	Name    string `json:"name"`
	Species string `json:"species"`
	Age     *int   `json:"age"`
}

func age(n int) *int {
	return &n
}

// Service holds the demo methods and the sessions of logged-in users.
type Service struct {
	mu       sync.Mutex
	sessions map[string]string
	// Users maps usernames to passwords, and each user to the name
	// whoami reports.
	Users map[string]User
}

type User struct {
	Password string
	Name     string
}

func NewService() *Service {
	return &Service{
		sessions: map[string]string{},
		Users: map[string]User{
			"neo": {Password: "trinity", Name: "the_one"},
		},
	}
}

func (s *Service) GetReversed(input string) string {
	r := []rune(input)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func (s *Service) GetPets() []Pet {
	return []Pet{
		{Name: "Basil", Species: "dog", Age: age(7)},
		{Name: "Billy", Species: "dog", Age: age(10)},
	}
}

// CheckPets answers "pets_ok!" if basil and billy are there under
// their own names, and says what's wrong otherwise.
func (s *Service) CheckPets(pets map[string]Pet) string {
	basil, ok := pets["basil"]
	if !ok {
		return "Basil is missing"
	}
	billy, ok := pets["billy"]
	if !ok {
		return "Billy is missing"
	}
	if basil.Name != "Basil" {
		return fmt.Sprintf("pets['basil'] has wrong name %q", basil.Name)
	}
	if billy.Name != "Billy" {
		return fmt.Sprintf("pets['billy'] has wrong name %q", billy.Name)
	}
	return "pets_ok!"
}

// Login returns true and a new session ID when the credentials are
// good, and a message saying why not otherwise.
func (s *Service) Login(username, password string) (interface{}, string) {
	user, ok := s.Users[username]
	switch {
	case ok && user.Password == password:
		id := uuid.New().String()
		s.mu.Lock()
		s.sessions[id] = user.Name
		s.mu.Unlock()
		return true, id
	case username == "":
		return "Username was empty", ""
	case password == "":
		return "Password was empty", ""
	}
	return "Invalid username or password", ""
}

// Whoami returns the user logged in with session id.
func (s *Service) Whoami(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.sessions[id]
	return name, ok
}

func (s *Service) Logout(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}
