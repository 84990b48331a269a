package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ashwinyue/next-intent/internal/handler"
	"github.com/ashwinyue/next-intent/internal/metrics"
	"github.com/ashwinyue/next-intent/internal/middleware"
	"github.com/ashwinyue/next-intent/internal/service"
)

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers, svc *service.Services, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(middleware.LoggingMiddleware(logger))
	r.Use(middleware.CORSMiddleware())

	// 健康检查
	r.GET("/health", h.System.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	authed := middleware.RequireAuth(svc.Auth)
	approved := []gin.HandlerFunc{authed, middleware.RequireApproval()}
	admin := middleware.RequireAdmin()

	// API v1
	v1 := r.Group("/api/v1")
	{
		// Auth 认证
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.GET("/profile", authed, h.Auth.Profile)
			auth.PUT("/password", authed, h.Auth.ChangePassword)
			auth.PUT("/users/:userId/approve", authed, admin, h.Auth.ApproveUser)
		}

		// System 系统
		v1.GET("/system/info", authed, h.System.Info)

		// Dataset 训练数据集
		datasets := v1.Group("/datasets", approved...)
		{
			datasets.POST("", h.Dataset.CreateDataset)
			datasets.POST("/upload", h.Dataset.UploadDataset)
			datasets.GET("", h.Dataset.ListDatasets)
			datasets.GET("/:id", h.Dataset.GetDataset)
			datasets.DELETE("/:id", h.Dataset.DeleteDataset)
		}

		// Training 训练与预测
		training := v1.Group("/training", approved...)
		{
			training.POST("/upload-and-train", h.Training.UploadAndTrain)
			training.POST("/retrain", h.Training.Retrain)
			training.POST("/predict", h.Training.Predict)
			training.GET("/models", h.Training.ListModels)
			training.GET("/model/:workspaceId", h.Training.ModelInfo)
			training.DELETE("/model/:workspaceId", admin, h.Training.DeleteModel)
		}

		// Evaluation 模型评估
		evaluation := v1.Group("/evaluation", approved...)
		{
			evaluation.POST("/validate", h.Evaluation.Validate)
			evaluation.POST("/evaluate", h.Evaluation.Evaluate)
			evaluation.POST("/evaluate-holdout", h.Evaluation.EvaluateHoldout)
			evaluation.POST("/compare", h.Evaluation.Compare)
			evaluation.GET("/results/:evaluationId", h.Evaluation.GetResult)
			evaluation.GET("/workspace/:workspaceId", h.Evaluation.ListWorkspace)
			evaluation.GET("/export/:evaluationId", h.Evaluation.Export)
		}

		// ModelVersion 模型版本
		versions := v1.Group("/model-versions", approved...)
		{
			versions.GET("/versions/:workspaceId", h.ModelVersion.ListVersions)
			versions.GET("/active/:workspaceId", h.ModelVersion.ActiveVersion)
			versions.GET("/version/:versionId", h.ModelVersion.GetVersion)
			versions.POST("/create", h.ModelVersion.CreateVersion)
			versions.PUT("/version/:versionId", h.ModelVersion.UpdateVersion)
			versions.POST("/compare", h.ModelVersion.CompareVersions)
			versions.DELETE("/version/:versionId", admin, h.ModelVersion.DeleteVersion)
			versions.GET("/export/:versionId", h.ModelVersion.ExportVersion)
			versions.GET("/statistics", h.ModelVersion.Statistics)
		}

		// ActiveLearning 主动学习
		al := v1.Group("/active-learning", approved...)
		{
			al.POST("/add-uncertain", h.ActiveLearning.AddUncertain)
			al.GET("/queue", h.ActiveLearning.Queue)
			al.GET("/stats", h.ActiveLearning.Stats)
			al.POST("/batch-annotate", h.ActiveLearning.BatchAnnotate)
			al.GET("/:sampleId", h.ActiveLearning.GetSample)
			al.PUT("/:sampleId/annotate", h.ActiveLearning.Annotate)
			al.PUT("/:sampleId/review", h.ActiveLearning.Review)
			al.PUT("/:sampleId/retrain", admin, h.ActiveLearning.Retrain)
			al.DELETE("/:sampleId", h.ActiveLearning.Delete)
		}

		// Feedback 用户反馈
		fb := v1.Group("/feedback", approved...)
		{
			fb.POST("/submit", h.Feedback.Submit)
			fb.GET("/user", h.Feedback.ListMine)
			fb.GET("/admin", admin, h.Feedback.ListAll)
			fb.GET("/stats", admin, h.Feedback.Stats)
			fb.GET("/suggestions/:text", h.Feedback.Suggestions)
			fb.PUT("/:feedbackId/review", admin, h.Feedback.Review)
			fb.PUT("/:feedbackId/retrain", admin, h.Feedback.Retrain)
		}
	}

	return r
}
