package spark

import (
	"context"
	"fmt"
	"time"

	"github.com/Futuramistic/Bot/pkg/pagination"
	"github.com/Futuramistic/Bot/pkg/validate"
)

const peoplePath = "people"

// Person is a Spark user or bot.
type Person struct {
	ID          string    `json:"id"`
	Emails      []string  `json:"emails"`
	DisplayName string    `json:"displayName"`
	NickName    string    `json:"nickName"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Avatar      string    `json:"avatar"`
	OrgID       string    `json:"orgId"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Created     time.Time `json:"created"`
}

func (p Person) resourceID() string { return p.ID }

// PrimaryEmail returns the first email address, or "".
func (p Person) PrimaryEmail() string {
	if len(p.Emails) == 0 {
		return ""
	}
	return p.Emails[0]
}

// PeopleAPI wraps the people endpoints.
type PeopleAPI struct {
	client Client
}

// List searches people by email or display-name prefix.
func (a *PeopleAPI) List(email, displayName string, max int) (pagination.Container[Person], error) {
	if err := validate.AtLeastOne("email", email, "displayName", displayName); err != nil {
		return pagination.Container[Person]{}, err
	}

	params, err := listParams(validate.NewParams().Str("email", email).Str("displayName", displayName), max, nil)
	if err != nil {
		return pagination.Container[Person]{}, err
	}

	return pagination.New(a.client, peoplePath, params, decoder[Person]("person")), nil
}

// Get returns one person.
func (a *PeopleAPI) Get(ctx context.Context, personID string) (Person, error) {
	if err := validate.Required("personId", personID); err != nil {
		return Person{}, err
	}

	raw, err := a.client.Get(ctx, resourcePath(peoplePath, personID), nil)
	if err != nil {
		return Person{}, fmt.Errorf("getting person: %w", err)
	}
	return decode[Person]("person", raw)
}

// Me returns the authenticated user.
func (a *PeopleAPI) Me(ctx context.Context) (Person, error) {
	raw, err := a.client.Get(ctx, peoplePath+"/me", nil)
	if err != nil {
		return Person{}, fmt.Errorf("getting authenticated person: %w", err)
	}
	return decode[Person]("person", raw)
}
