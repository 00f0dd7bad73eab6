package handler

import "github.com/go-playground/validator/v10"

// validate checks request DTOs tagged with `validate`.
var validate = validator.New()
