package api

import (
	"net/http"
	"strconv"
	"strings"

	"partyshop/internal/composer"
	"partyshop/internal/models"
	"partyshop/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// composerRequest is a draft plus the reducer operations to run on it.
// ProductID seeds the draft from a stored product instead.
type composerRequest struct {
	ProductID string         `json:"productId"`
	Draft     composer.Draft `json:"draft"`
	Ops       []composer.Op  `json:"ops" binding:"dive"`
}

// applyComposer runs variant composer operations; the admin form keeps the resulting draft
func (h *Handler) applyComposer(c *gin.Context) {
	var req composerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	if req.ProductID != "" {
		product, err := h.catalogService.FindByID(c.Request.Context(), req.ProductID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		req.Draft = composer.FromProduct(*product)
	}

	draft, err := composer.Apply(req.Draft, req.Ops...)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ready := make(map[string]bool, len(draft.Colors))
	for _, color := range draft.Colors {
		ready[color.ID] = composer.ReadyToCommit(draft, color.ID)
	}

	c.JSON(http.StatusOK, gin.H{
		"draft":         draft,
		"readyToCommit": ready,
	})
}

// listValues accepts both repeated and comma-separated query values
func listValues(c *gin.Context, key string) []string {
	var out []string
	for _, raw := range c.QueryArray(key) {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func parseProductFilter(c *gin.Context) (models.ProductFilter, error) {
	f := models.ProductFilter{
		Search:     strings.TrimSpace(c.Query("q")),
		Vendors:    listValues(c, "vendor"),
		Categories: listValues(c, "category"),
		Tags:       listValues(c, "tag"),
	}

	for key, dst := range map[string]**decimal.Decimal{"minPrice": &f.MinPrice, "maxPrice": &f.MaxPrice} {
		if raw := c.Query(key); raw != "" {
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return f, err
			}
			*dst = &d
		}
	}
	for key, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if raw := c.Query(key); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return f, err
			}
			*dst = n
		}
	}
	return f, nil
}

// listProducts handles catalog listing with filters
func (h *Handler) listProducts(c *gin.Context) {
	filter, err := parseProductFilter(c)
	if err != nil {
		badRequest(c, "Invalid filter", err)
		return
	}

	products, err := h.catalogService.FindAll(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// createProduct handles product creation
func (h *Handler) createProduct(c *gin.Context) {
	var in service.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	p, err := h.catalogService.CreateProduct(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// getProduct handles get product by ID
func (h *Handler) getProduct(c *gin.Context) {
	p, err := h.catalogService.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// getProductByHandle handles get product by handle
func (h *Handler) getProductByHandle(c *gin.Context) {
	p, err := h.catalogService.FindByHandle(c.Request.Context(), c.Param("handle"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// updateProduct handles partial product updates
func (h *Handler) updateProduct(c *gin.Context) {
	var in service.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	p, err := h.catalogService.UpdateProduct(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// deleteProduct handles product deletion
func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.catalogService.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// storefrontProduct resolves the product page for ?color=&size=
func (h *Handler) storefrontProduct(c *gin.Context) {
	view, err := h.catalogService.Storefront(c.Request.Context(), c.Param("id"), c.Query("color"), c.Query("size"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.categoryService.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *Handler) createCategory(c *gin.Context) {
	var in service.CategoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	category, err := h.categoryService.Create(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (h *Handler) getCategory(c *gin.Context) {
	category, err := h.categoryService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *Handler) listCategoryProducts(c *gin.Context) {
	products, err := h.categoryService.Products(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) renameCategory(c *gin.Context) {
	var in service.CategoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	category, err := h.categoryService.Rename(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *Handler) deleteCategory(c *gin.Context) {
	if err := h.categoryService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) addCategoryProduct(c *gin.Context) {
	category, err := h.categoryService.AddProduct(c.Request.Context(), c.Param("id"), c.Param("productId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *Handler) removeCategoryProduct(c *gin.Context) {
	category, err := h.categoryService.RemoveProduct(c.Request.Context(), c.Param("id"), c.Param("productId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}
