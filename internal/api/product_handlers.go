package api

import (
	"net/http"
	"strconv"

	"storefront/internal/auth"
	"storefront/internal/service"
	"storefront/internal/store"

	"github.com/gin-gonic/gin"
)

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "invalid " + name,
		})
		return 0, false
	}
	return id, true
}

func (h *Handler) productFilter(c *gin.Context) store.ProductFilter {
	filter := store.ProductFilter{
		Search: c.Query("keyword"),
		Sort:   c.Query("sort"),
	}
	if v, err := strconv.ParseInt(c.Query("category"), 10, 64); err == nil {
		filter.CategoryID = v
	}
	if v, err := strconv.ParseFloat(c.Query("price_min"), 64); err == nil {
		filter.MinPrice = &v
	}
	if v, err := strconv.ParseFloat(c.Query("price_max"), 64); err == nil {
		filter.MaxPrice = &v
	}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		filter.Page = v
	} else {
		filter.Page = 1
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		filter.Limit = v
	} else {
		filter.Limit = h.cfg.Business.DefaultPageLimit
	}
	return filter
}

func (h *Handler) listProducts(c *gin.Context) {
	filter := h.productFilter(c)

	products, total, err := h.catalog.ListProducts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	extra := gin.H{"total": total}
	if p := paginate(filter.Page, filter.Limit, total); p != nil {
		extra["pagination"] = p
	}
	respondList(c, products, len(products), extra)
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, product)
}

func (h *Handler) createProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	product, err := h.catalog.CreateProduct(c.Request.Context(), auth.CallerID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	product, err := h.catalog.UpdateProduct(c.Request.Context(), auth.CallerID(c), auth.CallerRole(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.catalog.DeleteProduct(c.Request.Context(), auth.CallerID(c), auth.CallerRole(c), id); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) addReview(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	review, err := h.catalog.AddReview(c.Request.Context(), auth.CallerID(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, review)
}

func (h *Handler) listReviews(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	reviews, err := h.catalog.ListReviews(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, reviews, len(reviews), nil)
}
