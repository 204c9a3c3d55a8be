package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

type product struct {
	ID       int    `json:"pk"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Archived bool   `json:"archived"`
}

type order struct {
	ID              int    `json:"ID"`
	DeliveryAddress string `json:"delivery address"`
	Promocode       string `json:"promocode"`
	UserID          int    `json:"user_id"`
	ProductIDs      []int  `json:"products id"`
}

// shop é um catálogo fixo em memória; serve só para exercitar o guard.
type shop struct {
	products []product
	orders   []order
	users    map[int]string

	// exportDelay simula uma consulta cara nas exportações.
	exportDelay time.Duration
}

func newShop(exportDelay time.Duration) *shop {
	return &shop{
		products: []product{
			{ID: 1, Name: "Laptop", Price: "1999.00"},
			{ID: 2, Name: "Desktop", Price: "2999.00"},
			{ID: 3, Name: "Smartphone", Price: "999.00"},
			{ID: 4, Name: "Pager", Price: "10.00", Archived: true},
		},
		orders: []order{
			{ID: 1, DeliveryAddress: "ul Pupkina, d 8", Promocode: "SALE123", UserID: 1, ProductIDs: []int{1, 3}},
			{ID: 2, DeliveryAddress: "Av. Paulista, 1000", UserID: 2, ProductIDs: []int{2}},
			{ID: 3, DeliveryAddress: "ul Pupkina, d 8", UserID: 1, ProductIDs: []int{2, 3}},
		},
		users:       map[int]string{1: "admin", 2: "maria"},
		exportDelay: exportDelay,
	}
}

var errSimulated = errors.New("simulated failure")

func (s *shop) listProducts(w http.ResponseWriter, r *http.Request) error {
	active := make([]product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Archived {
			active = append(active, p)
		}
	}
	return writeJSON(w, map[string]any{"products": active, "generated_at": time.Now().UTC()})
}

func (s *shop) exportProducts(w http.ResponseWriter, r *http.Request) error {
	if err := s.slowQuery(r); err != nil {
		return err
	}
	return writeJSON(w, map[string]any{"products": s.products})
}

func (s *shop) exportUserOrders(w http.ResponseWriter, r *http.Request) error {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return nil
	}
	if _, ok := s.users[id]; !ok {
		http.Error(w, "user not found", http.StatusNotFound)
		return nil
	}
	if err := s.slowQuery(r); err != nil {
		return err
	}

	orders := make([]order, 0)
	for _, o := range s.orders {
		if o.UserID == id {
			orders = append(orders, o)
		}
	}
	return writeJSON(w, map[string]any{"orders": orders})
}

func (s *shop) fail(http.ResponseWriter, *http.Request) error {
	return errSimulated
}

func (s *shop) slowQuery(r *http.Request) error {
	if s.exportDelay <= 0 {
		return nil
	}
	t := time.NewTimer(s.exportDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-r.Context().Done():
		return r.Context().Err()
	}
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}
