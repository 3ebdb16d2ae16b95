package web

import (
	"net/http"

	"github.com/JonMunkholm/shoestore/internal/core"
)

// handleListProducts returns the catalog as JSON, filtered for the caller's role.
func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	products, err := s.service.ListProducts(r.Context(), productFilter(r, p.Role))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if products == nil {
		products = []core.ProductView{}
	}
	writeJSON(w, http.StatusOK, products)
}

// handleListOrders returns all orders as JSON.
func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.service.ListOrders(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if orders == nil {
		orders = []core.OrderView{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// handleStats returns row counts per table.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.service.Stats(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// handleListEntities returns the importable entities in import order.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ListEntities())
}
