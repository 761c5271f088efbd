package metadata

/** @brief Runs on a worker. The returned value is handed to OnComplete. */
type JobStart func(params interface{}) (interface{}, error)

/** @brief Invoked on the worker after a successful start. */
type JobOnComplete func(result interface{})

/** @brief Invoked on the worker when the start function fails. */
type JobOnFailure func(err error)

/**
 * @brief Describes a job to be run.
 */
type JobTask struct {
	Name string
	/** @brief Required. */
	OnStart JobStart
	/** @brief Optional. */
	OnComplete JobOnComplete
	/** @brief Optional. */
	OnFailure JobOnFailure
	/** @brief Data to be passed to OnStart. */
	InputParams interface{}
}
