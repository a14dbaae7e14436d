package entity

import "errors"

// ErrNotFound возвращается, когда инспекция или настройка не существует.
var ErrNotFound = errors.New("not found")
