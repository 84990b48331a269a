package model

// AllModels 所有模型的统一导入点，用于 AutoMigrate
var AllModels = []interface{}{
	&User{},
	&Dataset{},
	&TrainingExample{},
	&ModelSnapshot{},
	&EvaluationRecord{},
	&ActiveLearningSample{},
	&FeedbackRecord{},
}
