package model

import (
	"encoding/json"
	"reflect"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Document is the whole persisted state. It is loaded and saved as one unit.
type Document struct {
	Users   map[string]*User   `json:"users" validate:"dive"`
	Items   []Item             `json:"items" validate:"dive"`
	Orders  []Order            `json:"orders" validate:"dive"`
	Coupons map[string]*Coupon `json:"coupons" validate:"dive"`
	Config  Policy             `json:"config"`

	// Version is the revision the document was loaded at. Backends that
	// support optimistic writes use it; it is never serialized.
	Version int64 `json:"-"`
}

// NewDocument returns an empty document with all collections allocated.
func NewDocument() *Document {
	return &Document{
		Users:   make(map[string]*User),
		Items:   []Item{},
		Orders:  []Order{},
		Coupons: make(map[string]*Coupon),
	}
}

// Decode parses and validates a serialized document. Coupon codes are
// re-attached from the mapping keys.
func Decode(data []byte) (*Document, error) {
	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, errors.Wrap(err, "decode document")
	}
	doc.normalize()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Encode serializes the document in the indented layout used on disk.
func (d *Document) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode document")
	}
	return data, nil
}

// normalize allocates nil collections and fills derived fields.
func (d *Document) normalize() {
	if d.Users == nil {
		d.Users = make(map[string]*User)
	}
	if d.Items == nil {
		d.Items = []Item{}
	}
	if d.Orders == nil {
		d.Orders = []Order{}
	}
	if d.Coupons == nil {
		d.Coupons = make(map[string]*Coupon)
	}
	for code, c := range d.Coupons {
		if c != nil {
			c.Code = code
		}
	}
	for _, u := range d.Users {
		if u != nil && u.Cart == nil {
			u.Cart = []CartLine{}
		}
	}
}

// Validate checks every record against its schema and the cross-record
// invariants. All failures wrap ErrCorrupt.
func (d *Document) Validate() error {
	if err := validate().Struct(d); err != nil {
		return errors.Wrap(ErrCorrupt, err.Error())
	}
	emails := make(map[string]string, len(d.Users))
	for key, u := range d.Users {
		if u == nil {
			return errors.Wrapf(ErrCorrupt, "user %q is null", key)
		}
		if u.Username != key {
			return errors.Wrapf(ErrCorrupt, "user key %q does not match username %q", key, u.Username)
		}
		if other, dup := emails[u.Email]; dup {
			return errors.Wrapf(ErrCorrupt, "users %q and %q share email %q", other, key, u.Email)
		}
		emails[u.Email] = key
	}
	for code, c := range d.Coupons {
		if c == nil {
			return errors.Wrapf(ErrCorrupt, "coupon %q is null", code)
		}
	}
	seen := make(map[int]struct{}, len(d.Items))
	for _, it := range d.Items {
		if _, dup := seen[it.ID]; dup {
			return errors.Wrapf(ErrCorrupt, "duplicate item id %d", it.ID)
		}
		seen[it.ID] = struct{}{}
	}
	return nil
}

// UserByEmail returns the user registered with email, or nil.
func (d *Document) UserByEmail(email string) *User {
	for _, u := range d.Users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

// UserByID returns the user with the given id, or nil.
func (d *Document) UserByID(id string) *User {
	for _, u := range d.Users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := &Document{
		Users:   make(map[string]*User, len(d.Users)),
		Items:   slices.Clone(d.Items),
		Orders:  make([]Order, len(d.Orders)),
		Coupons: make(map[string]*Coupon, len(d.Coupons)),
		Config:  d.Config,
		Version: d.Version,
	}
	if out.Items == nil {
		out.Items = []Item{}
	}
	for k, u := range d.Users {
		cu := *u
		cu.Cart = append([]CartLine{}, u.Cart...)
		out.Users[k] = &cu
	}
	for i, o := range d.Orders {
		co := o
		co.Items = slices.Clone(o.Items)
		if o.CreatedAt != nil {
			t := *o.CreatedAt
			co.CreatedAt = &t
		}
		out.Orders[i] = co
	}
	for k, c := range d.Coupons {
		cc := *c
		out.Coupons[k] = &cc
	}
	return out
}

var (
	validateOnce sync.Once
	validateInst *validator.Validate
)

// validate returns the shared validator. Decimal fields are compared as
// floats so numeric tags such as gte=0 apply to them.
func validate() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.InexactFloat64()
			}
			return nil
		}, decimal.Decimal{})
		validateInst = v
	})
	return validateInst
}
