package config

import "time"

// Default values for configuration.
const (
	DefaultLogLevel = "info"

	DefaultServerAddr            = ":8443"
	DefaultServerWebhookPath     = "/webhook/"
	DefaultServerMaxConcurrent   = 32
	DefaultServerRequestTimeout  = 5 * time.Minute
	DefaultServerShutdownTimeout = 30 * time.Second

	DefaultStoragePrefix = "photos"

	DefaultInferenceHost        = "yolo5"
	DefaultInferencePort        = 8081
	DefaultInferenceTimeout     = 60 * time.Second
	DefaultInferenceMaxAttempts = 3
	DefaultInferenceRetryDelay  = 3 * time.Second

	DefaultPredictionTimeout         = 4 * time.Minute
	DefaultPredictionPersistAttempts = 3
	DefaultPredictionPersistDelay    = 3 * time.Second

	DefaultDatabaseDriver       = "sqlite"
	DefaultDatabaseDSN          = "polybot.db"
	DefaultDatabaseMaxOpenConns = 10
	DefaultDatabaseRetention    = 30 * 24 * time.Hour

	DefaultMediaGroupTTL       = 10 * time.Minute
	DefaultMediaGroupMaxGroups = 1024

	DefaultImagesDir    = "photos"
	DefaultImagesMaxAge = time.Hour
)

// DefaultTasks are the maintenance tasks scheduled when no configuration overrides them.
var DefaultTasks = map[string]TaskConfig{
	"prediction_retention": {Enabled: true, Schedule: "0 0 3 * * *"},
	"image_cleanup":        {Enabled: true, Schedule: "0 */15 * * * *"},
	"media_group_report":   {Enabled: true, Schedule: "0 */5 * * * *"},
	"sql_maintenance":      {Enabled: true, Schedule: "0 30 3 * * 0"},
}

// DefaultMessages are the texts the bot sends.
var DefaultMessages = MessagesConfig{
	Welcome: `
Welcome to the Image Processing Bot!

Upload an image and type in the caption the action you'd like to do.

*NOTE:* You need to type in the words or numbers. For *Concat* you need to upload more than one image

These are the available actions:
1. *Blur* - blurs the image.
    a. You may specify the blur strength by inputting a floating point number up to 100

    *example usage: blur 10*
2. *Contour* - applies a contour effect to the image

    *example usage: contour*
3. *Rotate* - rotates the image
    a. You may also input either *clockwise* or *anti-clockwise* (default *clockwise*)
    b. You may also input the degrees to rotate (default *90*)
        i. *90*
        ii. *180*
        iii. *270*
    c. You may enter either of the above or both

    *example usage: rotate anti-clockwise 180*
4. *Salt and pepper* - randomly sprinkle white and black pixels on the image
    a. You may specify noise level by inputting a floating point number representing the proportion of the image pixels to be affected by noise.

    *example usage: salt and pepper 0.1*
5. *Concat* - concatenates two images
    a. You may also send the direction of either *horizontal* or *vertical* (default *horizontal*)
    b. You may also specify the sides to be concatenated based on the direction (default *right-to-left*)
        i. horizontal: *right-to-left*, *left-to-right*
        ii. vertical: *top-to-bottom*, *bottom-to-top*

    *example usage: concat vertical top-to-bottom*
6. *Segment* - represented in a more simplified manner, and so we can then identify objects and boundaries more easily.

    *example usage: segment*
7. *Predict* - detects the objects in the image

    *example usage: predict*
`,
	EchoPrefix:       "Your original message: ",
	NoQuote:          "Please don't quote me",
	MissingAction:    "Please specify an action you'd like to execute on the image and try again.\nIf you're unsure, please refer to 'help' for assistance and try again.",
	UnknownAction:    "Invalid image action specified. Please refer to the 'help' for assistance and try again.",
	ConcatNeedsGroup: "You need to upload more than one image in order to concat. Please try again.",
	ErrorPrefix:      "An error has occurred:\n",
	TryAgain:         "\nPlease try again.",
}
