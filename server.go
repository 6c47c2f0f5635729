package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/agrifocus/mandi_backend/appctx"
	"github.com/agrifocus/mandi_backend/config"
	"github.com/agrifocus/mandi_backend/models"
	"github.com/agrifocus/mandi_backend/utils"
	"github.com/agrifocus/mandi_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func correlationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationId := strings.TrimSpace(c.GetHeader("X-Correlation-Id"))
		if correlationId == "" {
			correlationId = uuid.New().String()
		}
		ctx := appctx.Set(c.Request.Context(), appctx.ContextKeyCorrelationId, correlationId)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Correlation-Id", correlationId)
		c.Next()
	}
}

// actorMiddleware picks up the acting user forwarded by the gateway so audit
// logs can name who triggered a posting.
func actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if userId, err := strconv.Atoi(strings.TrimSpace(c.GetHeader("X-User-Id"))); err == nil && userId > 0 {
			ctx = appctx.Set(ctx, appctx.ContextKeyUserId, userId)
		}
		if userName := strings.TrimSpace(c.GetHeader("X-User-Name")); userName != "" {
			ctx = appctx.Set(ctx, appctx.ContextKeyUserName, userName)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		for _, ginErr := range c.Errors {
			ctx := c.Request.Context()
			correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
			fields := logrus.Fields{
				"path":           c.Request.URL.Path,
				"correlation_id": correlationId,
			}
			if userId, ok := utils.GetUserIdFromContext(ctx); ok {
				fields["user_id"] = userId
			}
			if userName, ok := appctx.GetString(ctx, appctx.ContextKeyUserName); ok {
				fields["user_name"] = userName
			}
			logger.WithFields(fields).Error(ginErr.Error())
		}
	}
}

func respondError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.Is(err, workflow.ErrDuplicateSubmission):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate submission"})
	case errors.Is(err, workflow.ErrIdempotencyInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "a previous submission with this key is still in progress"})
	case utils.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &validationErrs):
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}

func idempotencyKey(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader("X-Idempotency-Key"))
}

func createItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewItem
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		item, err := models.CreateItem(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

func getItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := models.GetItems(c.Request.Context(), strings.TrimSpace(c.Query("search")))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

func getItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		item, err := models.GetItem(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func createVendorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewVendor
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		vendor, err := models.CreateVendor(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, vendor)
	}
}

func getVendorsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		vendors, err := models.GetVendors(c.Request.Context(), strings.TrimSpace(c.Query("search")))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, vendors)
	}
}

func getVendorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		vendor, err := models.GetVendor(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, vendor)
	}
}

func createRetailerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewRetailer
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		retailer, err := models.CreateRetailer(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, retailer)
	}
}

func getRetailersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		retailers, err := models.GetRetailers(c.Request.Context(), strings.TrimSpace(c.Query("search")))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, retailers)
	}
}

func getRetailerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		retailer, err := models.GetRetailer(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, retailer)
	}
}

func createStockOutEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewStockOutEntry
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		entry, err := models.CreateStockOutEntry(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, entry)
	}
}

func getUnbilledStockOutEntriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		vendorId, err := strconv.Atoi(c.Query("vendor_id"))
		if err != nil || vendorId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "vendor_id query parameter is required"})
			return
		}
		entries, err := models.GetUnbilledStockOutEntries(c.Request.Context(), vendorId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

func getAvailableStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		itemId, ok := pathId(c, "item_id")
		if !ok {
			return
		}
		stock, err := models.GetAvailableStock(c.Request.Context(), itemId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stock)
	}
}

func createPurchaseInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPurchaseInvoice
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		invoice, err := workflow.CreatePurchaseInvoice(c.Request.Context(), &input, idempotencyKey(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, invoice)
	}
}

func getPurchaseInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		vendorId, _ := strconv.Atoi(c.Query("vendor_id"))
		invoices, err := models.GetPurchaseInvoices(c.Request.Context(), vendorId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoices)
	}
}

func getPurchaseInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		invoice, err := models.GetPurchaseInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func updatePurchaseInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewPurchaseInvoice
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		invoice, err := workflow.UpdatePurchaseInvoice(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func deletePurchaseInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		if err := workflow.DeletePurchaseInvoice(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func previewPurchaseTotalsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.PreviewPurchaseInvoice
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		preview, err := models.PreviewPurchaseTotals(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, preview)
	}
}

func createSalesInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSalesInvoice
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		invoice, err := workflow.CreateSalesInvoice(c.Request.Context(), &input, idempotencyKey(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, invoice)
	}
}

func getSalesInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		retailerId, _ := strconv.Atoi(c.Query("retailer_id"))
		invoices, err := models.GetSalesInvoices(c.Request.Context(), retailerId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoices)
	}
}

func getSalesInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		invoice, err := models.GetSalesInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func updateSalesInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewSalesInvoice
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		invoice, err := workflow.UpdateSalesInvoice(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func deleteSalesInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		if err := workflow.DeleteSalesInvoice(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func settleShortSalesInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		invoice, err := workflow.SettleShortSalesInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func createVendorPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewVendorPayment
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		payment, err := workflow.CreateVendorPayment(c.Request.Context(), &input, idempotencyKey(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, payment)
	}
}

func deleteVendorPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		if err := workflow.DeleteVendorPayment(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func createRetailerPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewRetailerPayment
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		payment, err := workflow.CreateRetailerPayment(c.Request.Context(), &input, idempotencyKey(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, payment)
	}
}

func deleteRetailerPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		if err := workflow.DeleteRetailerPayment(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func balanceSummaryHandler(refresher *workflow.BalanceRefresher) gin.HandlerFunc {
	return func(c *gin.Context) {
		forceRefresh := strings.EqualFold(c.Query("refresh"), "true")
		summary, err := refresher.GetBalanceSummary(c.Request.Context(), forceRefresh)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func main() {
	logger := config.GetLogger()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	if strings.EqualFold(strings.TrimSpace(os.Getenv("GIN_MODE")), "release") {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(correlationMiddleware())
	r.Use(actorMiddleware())
	r.Use(customErrorLogger(logger))

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if allowedOrigins != "" {
		corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "X-Idempotency-Key", "X-Correlation-Id", "X-User-Id", "X-User-Name")
	corsConfig.AddExposeHeaders("Content-Length", "X-Correlation-Id")
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.POST("/items", createItemHandler())
	r.GET("/items", getItemsHandler())
	r.GET("/items/:id", getItemHandler())

	r.POST("/vendors", createVendorHandler())
	r.GET("/vendors", getVendorsHandler())
	r.GET("/vendors/:id", getVendorHandler())

	r.POST("/retailers", createRetailerHandler())
	r.GET("/retailers", getRetailersHandler())
	r.GET("/retailers/:id", getRetailerHandler())

	r.POST("/stock-out-entries", createStockOutEntryHandler())
	r.GET("/stock-out-entries/unbilled", getUnbilledStockOutEntriesHandler())
	r.GET("/stock/:item_id", getAvailableStockHandler())

	r.POST("/purchase-invoices", createPurchaseInvoiceHandler())
	r.POST("/purchase-invoices/preview", previewPurchaseTotalsHandler())
	r.GET("/purchase-invoices", getPurchaseInvoicesHandler())
	r.GET("/purchase-invoices/:id", getPurchaseInvoiceHandler())
	r.PUT("/purchase-invoices/:id", updatePurchaseInvoiceHandler())
	r.DELETE("/purchase-invoices/:id", deletePurchaseInvoiceHandler())

	r.POST("/sales-invoices", createSalesInvoiceHandler())
	r.GET("/sales-invoices", getSalesInvoicesHandler())
	r.GET("/sales-invoices/:id", getSalesInvoiceHandler())
	r.PUT("/sales-invoices/:id", updateSalesInvoiceHandler())
	r.DELETE("/sales-invoices/:id", deleteSalesInvoiceHandler())
	r.POST("/sales-invoices/:id/settle-short", settleShortSalesInvoiceHandler())

	r.POST("/vendor-payments", createVendorPaymentHandler())
	r.DELETE("/vendor-payments/:id", deleteVendorPaymentHandler())
	r.POST("/retailer-payments", createRetailerPaymentHandler())
	r.DELETE("/retailer-payments/:id", deleteRetailerPaymentHandler())

	balanceRefresher := workflow.NewBalanceRefresher()
	r.GET("/balance-summary", balanceSummaryHandler(balanceRefresher))

	r.NoRoute(customNotFoundHandler)

	// Start listening immediately; dependencies connect after the port is open.
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
		if rdb := config.GetRedisDB(); rdb != nil {
			_ = rdb.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running it as a
	// separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	logger.WithFields(logrus.Fields{"port": port}).Info("server started")
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
}
