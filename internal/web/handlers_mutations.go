package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/shoestore/internal/core"
	"github.com/JonMunkholm/shoestore/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// handleProductForm renders the add form, or the edit form when the route
// carries an article.
func (s *Server) handleProductForm(w http.ResponseWriter, r *http.Request) {
	data := templates.ProductFormData{}

	if article := articleParam(r); article != "" {
		p, err := s.service.GetProduct(r.Context(), article)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		data.Editing = true
		data.Input = core.ProductInput{
			Article:      p.Article,
			Name:         p.Name,
			Unit:         p.Unit,
			Price:        p.Price.StringFixed(2),
			Discount:     fmt.Sprint(p.Discount),
			Quantity:     fmt.Sprint(p.Quantity),
			Description:  p.Description,
			Photo:        p.Photo,
			Category:     p.Category,
			Supplier:     p.Supplier,
			Manufacturer: p.Manufacturer,
		}
	}

	s.renderProductForm(w, r, http.StatusOK, data)
}

// renderProductForm fills the reference lists and renders the form.
func (s *Server) renderProductForm(w http.ResponseWriter, r *http.Request, status int, data templates.ProductFormData) {
	ctx := r.Context()
	var err error
	if data.Categories, err = s.service.ListCategories(ctx); err != nil {
		s.respondError(w, r, err)
		return
	}
	if data.Suppliers, err = s.service.ListSuppliers(ctx); err != nil {
		s.respondError(w, r, err)
		return
	}
	if data.Manufacturers, err = s.service.ListManufacturers(ctx); err != nil {
		s.respondError(w, r, err)
		return
	}

	title := "Новый товар"
	if data.Editing {
		title = "Товар " + data.Input.Article
	}
	data.Base = s.base(w, r, title)
	s.renderStatus(w, r, status, templates.ProductFormPage(data))
}

// handleSaveProduct creates or updates a product. Validation errors
// re-render the form with the submitted values.
func (s *Server) handleSaveProduct(w http.ResponseWriter, r *http.Request) {
	in := core.ProductInput{
		Article:      strings.TrimSpace(r.FormValue("article")),
		Name:         r.FormValue("name"),
		Unit:         r.FormValue("unit"),
		Price:        r.FormValue("price"),
		Discount:     r.FormValue("discount"),
		Quantity:     r.FormValue("quantity"),
		Description:  r.FormValue("description"),
		Photo:        r.FormValue("photo"),
		Category:     r.FormValue("category"),
		Supplier:     r.FormValue("supplier"),
		Manufacturer: r.FormValue("manufacturer"),
	}
	editing := r.FormValue("editing") != ""
	ctx := WithRequestMetadata(r.Context(), r)

	// The add form must not overwrite an existing article.
	if !editing && in.Article != "" {
		_, err := s.service.GetProduct(ctx, in.Article)
		if err == nil {
			s.renderProductForm(w, r, http.StatusConflict, templates.ProductFormData{
				Input: in,
				Error: "Товар с артикулом " + in.Article + " уже существует",
			})
			return
		}
		if !errors.Is(err, core.ErrNotFound) {
			s.respondError(w, r, err)
			return
		}
	}

	if err := s.service.UpsertProduct(ctx, in); err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			s.renderProductForm(w, r, http.StatusBadRequest, templates.ProductFormData{
				Editing: editing,
				Input:   in,
				Error:   formError(err),
			})
			return
		}
		s.respondError(w, r, err)
		return
	}

	s.addFlash(w, r, "Товар "+in.Article+" сохранен")
	http.Redirect(w, r, "/products", http.StatusSeeOther)
}

// handleDeleteProduct removes a product that no order references.
func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	article := articleParam(r)
	deleted, err := s.service.DeleteProduct(WithRequestMetadata(r.Context(), r), article)
	switch {
	case errors.Is(err, core.ErrProductInUse):
		s.addFlash(w, r, "Товар "+article+" входит в заказы и не может быть удален")
	case err != nil:
		s.respondError(w, r, err)
		return
	case !deleted:
		s.addFlash(w, r, "Товар "+article+" не найден")
	default:
		s.addFlash(w, r, "Товар "+article+" удален")
	}
	http.Redirect(w, r, "/products", http.StatusSeeOther)
}

// handleOrderForm renders the add form, or the edit form when the route
// carries an order number.
func (s *Server) handleOrderForm(w http.ResponseWriter, r *http.Request) {
	data := templates.OrderFormData{}

	if chi.URLParam(r, "id") != "" {
		id, ok := orderIDParam(r)
		if !ok {
			s.respondError(w, r, core.ErrNotFound)
			return
		}
		o, err := s.service.GetOrder(r.Context(), id)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		data.Editing = true
		data.Items = core.FormatLineItems(o.Items)
		data.Input = core.OrderInput{
			ID:           o.ID,
			OrderDate:    isoDate(o.OrderDate),
			DeliveryDate: isoDate(o.DeliveryDate),
			PickupCode:   o.PickupCode,
			ClientName:   o.ClientName,
			UserID:       o.UserID,
			PointID:      o.PointID,
			StatusID:     o.StatusID,
		}
	}

	s.renderOrderForm(w, r, http.StatusOK, data)
}

// renderOrderForm fills the reference lists and renders the form.
func (s *Server) renderOrderForm(w http.ResponseWriter, r *http.Request, status int, data templates.OrderFormData) {
	ctx := r.Context()
	var err error
	if data.Statuses, err = s.service.ListStatuses(ctx); err != nil {
		s.respondError(w, r, err)
		return
	}
	if data.Points, err = s.service.ListPickupPoints(ctx); err != nil {
		s.respondError(w, r, err)
		return
	}
	if data.Clients, err = s.service.ListClients(ctx); err != nil {
		s.respondError(w, r, err)
		return
	}

	title := "Новый заказ"
	if data.Editing {
		title = fmt.Sprintf("Заказ %d", data.Input.ID)
	}
	data.Base = s.base(w, r, title)
	s.renderStatus(w, r, status, templates.OrderFormPage(data))
}

// handleSaveOrder creates or updates an order with its line items.
func (s *Server) handleSaveOrder(w http.ResponseWriter, r *http.Request) {
	in := core.OrderInput{
		ID:           formInt32(r, "id"),
		OrderDate:    r.FormValue("order_date"),
		DeliveryDate: r.FormValue("delivery_date"),
		PickupCode:   r.FormValue("pickup_code"),
		ClientName:   r.FormValue("client_name"),
		UserID:       formInt32(r, "user_id"),
		PointID:      formInt32(r, "point_id"),
		StatusID:     formInt32(r, "status_id"),
	}
	raw := r.FormValue("items")

	id, err := s.service.UpsertOrder(WithRequestMetadata(r.Context(), r), in, core.ParseLineItems(raw))
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			s.renderOrderForm(w, r, http.StatusBadRequest, templates.OrderFormData{
				Editing: in.ID != 0,
				Input:   in,
				Items:   raw,
				Error:   formError(err),
			})
			return
		}
		s.respondError(w, r, err)
		return
	}

	s.addFlash(w, r, fmt.Sprintf("Заказ %d сохранен", id))
	http.Redirect(w, r, "/orders", http.StatusSeeOther)
}

// handleDeleteOrder removes an order and its line items.
func (s *Server) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(r)
	if !ok {
		s.respondError(w, r, core.ErrNotFound)
		return
	}

	deleted, err := s.service.DeleteOrder(WithRequestMetadata(r.Context(), r), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if deleted {
		s.addFlash(w, r, fmt.Sprintf("Заказ %d удален", id))
	} else {
		s.addFlash(w, r, fmt.Sprintf("Заказ %d не найден", id))
	}
	http.Redirect(w, r, "/orders", http.StatusSeeOther)
}

// formError renders a validation error with its guidance for a form.
func formError(err error) string {
	msg := core.MapError(err)
	return fmt.Sprintf("%s: %s (%s)", err.Error(), msg.Action, msg.Code)
}
