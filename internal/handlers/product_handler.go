package handlers

import (
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/sachindewan/CoilApplication/internal/apperr"
	"github.com/sachindewan/CoilApplication/internal/database"
	"github.com/sachindewan/CoilApplication/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	productUploadRoot = "ProductUploads"
	maxProductImages  = 5
)

// --- POST /product (multipart/form-data) ---
// Files land on disk first under ProductUploads/<product name>/, then the
// product and image rows are written. A DB failure cleans the folder up so
// a retry with the same name is not blocked by orphaned files.
func CreateProduct(c *gin.Context) {
	name := strings.TrimSpace(c.PostForm("name"))
	if aerr := validateName(name, "Product name"); aerr != nil {
		problem(c, aerr)
		return
	}
	specification := strings.TrimSpace(c.PostForm("specification"))

	price, err := decimal.NewFromString(c.PostForm("price"))
	if err != nil || !price.IsPositive() {
		problem(c, apperr.Validation("SaveProductCommand.Invalid", "Price must be a positive number."))
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		invalid(c, "Invalid multipart payload")
		return
	}
	files := form.File["images"]
	if len(files) == 0 {
		problem(c, apperr.Validation("SaveProductCommand.Invalid", "At least one image is required."))
		return
	}
	if len(files) > maxProductImages {
		problem(c, apperr.Validation("SaveProductCommand.TooManyImages",
			"A product may carry at most %d images.", maxProductImages))
		return
	}
	seen := make(map[string]bool, len(files))
	for _, file := range files {
		base := filepath.Base(file.Filename)
		if seen[base] {
			problem(c, apperr.Validation("SaveProductCommand.DuplicateFileName",
				"Duplicate image file name '%s'.", base))
			return
		}
		seen[base] = true
	}

	db := database.DB.WithContext(c.Request.Context())

	var count int64
	if err := db.Model(&models.Product{}).
		Where("LOWER(TRIM(name)) = ?", normalized(name)).
		Count(&count).Error; err != nil {
		problem(c, apperr.Transaction("SaveProductCommand.QueryFailed", err))
		return
	}
	if count > 0 {
		problem(c, apperr.Duplicate("SaveProductCommand.DuplicateProduct",
			"Product with the name '%s' already exists.", name))
		return
	}

	folder := filepath.Join(productUploadRoot, name)
	if _, statErr := os.Stat(folder); statErr == nil {
		problem(c, apperr.Duplicate("SaveProductCommand.FolderExists",
			"An upload folder for '%s' already exists.", name))
		return
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		problem(c, apperr.Transaction("SaveProductCommand.StorageFailed", err))
		return
	}

	product := models.Product{
		ID:            uuid.New(),
		Name:          name,
		Specification: specification,
		Price:         price,
	}
	for _, file := range files {
		base := filepath.Base(file.Filename)
		destination := filepath.Join(folder, base)
		if err := c.SaveUploadedFile(file, destination); err != nil {
			removeProductFolder(folder)
			problem(c, apperr.Transaction("SaveProductCommand.StorageFailed", err))
			return
		}
		product.ProductImages = append(product.ProductImages, models.ProductImage{
			ID:  uuid.New(),
			URI: "/" + filepath.ToSlash(destination),
		})
	}

	if err := db.Create(&product).Error; err != nil {
		removeProductFolder(folder)
		problem(c, apperr.Transaction("SaveProductCommand.TransactionFailed", err))
		return
	}

	c.Header("Location", "/products/"+product.ID.String())
	c.JSON(http.StatusCreated, product)
}

func removeProductFolder(folder string) {
	if err := os.RemoveAll(folder); err != nil {
		logrus.WithError(err).WithField("folder", folder).Warn("failed to clean up product upload folder")
	}
}

// pagedProducts is the paging envelope for the catalogue listing.
type pagedProducts struct {
	TotalCount  int64            `json:"total_count"`
	PageSize    int              `json:"page_size"`
	CurrentPage int              `json:"current_page"`
	TotalPages  int              `json:"total_pages"`
	Products    []models.Product `json:"products"`
}

// --- GET /products?pageNumber=&pageSize= ---
func GetProducts(c *gin.Context) {
	pageNumber, err := strconv.Atoi(c.DefaultQuery("pageNumber", "1"))
	if err != nil || pageNumber < 1 {
		invalid(c, "pageNumber must be a positive integer")
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", "10"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		invalid(c, "pageSize must be between 1 and 100")
		return
	}

	var total int64
	if err := database.DB.Model(&models.Product{}).Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	var products []models.Product
	if err := database.DB.Preload("ProductImages").
		Order("name").
		Offset((pageNumber - 1) * pageSize).
		Limit(pageSize).
		Find(&products).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	base := fmt.Sprintf("%s://%s", scheme, c.Request.Host)
	for i := range products {
		for j := range products[i].ProductImages {
			uri := products[i].ProductImages[j].URI
			if strings.HasPrefix(uri, "/") {
				products[i].ProductImages[j].URI = base + uri
			}
		}
	}

	c.JSON(http.StatusOK, pagedProducts{
		TotalCount:  total,
		PageSize:    pageSize,
		CurrentPage: pageNumber,
		TotalPages:  int(math.Ceil(float64(total) / float64(pageSize))),
		Products:    products,
	})
}

var mobilePattern = regexp.MustCompile(`^[6-9]\d{9}$`)

type CreateEnquiryRequest struct {
	Name         string  `json:"name" binding:"required,max=256"`
	Place        string  `json:"place" binding:"required,max=256"`
	RawMaterial  string  `json:"raw_material" binding:"required,max=256"`
	Quantity     float64 `json:"quantity"`
	MobileNumber string  `json:"mobile_number" binding:"required"`
}

// --- POST /enquiry (public) ---
func CreateEnquiry(c *gin.Context) {
	var input CreateEnquiryRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		invalid(c, "Invalid enquiry payload")
		return
	}
	if input.Quantity <= 0 {
		problem(c, apperr.Validation("SaveEnquiryCommand.Invalid", "Quantity must be greater than zero."))
		return
	}
	if !mobilePattern.MatchString(input.MobileNumber) {
		problem(c, apperr.Validation("SaveEnquiryCommand.InvalidMobileNumber",
			"Mobile number must be a 10 digit Indian mobile number."))
		return
	}
	mobile, _ := strconv.ParseInt(input.MobileNumber, 10, 64)

	enquiry := models.Enquiry{
		Name:         strings.TrimSpace(input.Name),
		Place:        strings.TrimSpace(input.Place),
		RawMaterial:  strings.TrimSpace(input.RawMaterial),
		Quantity:     input.Quantity,
		MobileNumber: mobile,
	}
	if err := database.DB.WithContext(c.Request.Context()).Create(&enquiry).Error; err != nil {
		problem(c, apperr.Transaction("SaveEnquiryCommand.TransactionFailed", err))
		return
	}

	c.JSON(http.StatusCreated, enquiry)
}

// --- GET /enquiries ---
func GetEnquiries(c *gin.Context) {
	var enquiries []models.Enquiry
	if err := database.DB.Find(&enquiries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch enquiries"})
		return
	}
	c.JSON(http.StatusOK, enquiries)
}
